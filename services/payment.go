package services

import (
	"context"
	"fmt"
	"time"

	"learnhub/errors"
	"learnhub/logger"
	"learnhub/models"
	"learnhub/store"

	"github.com/razorpay/razorpay-go"
)

// OrderClient opens checkout orders with the payment gateway.
type OrderClient interface {
	CreateOrder(amount int64, currency, receipt string) (string, error)
}

// RazorpayOrderClient is the production OrderClient.
type RazorpayOrderClient struct {
	keyID     string
	keySecret string
}

func NewRazorpayOrderClient(keyID, keySecret string) *RazorpayOrderClient {
	return &RazorpayOrderClient{keyID: keyID, keySecret: keySecret}
}

// CreateOrder opens a gateway order. Amount is in the smallest currency
// unit, which is also what the gateway API expects.
func (c *RazorpayOrderClient) CreateOrder(amount int64, currency, receipt string) (string, error) {
	if c.keyID == "" || c.keySecret == "" {
		return "", fmt.Errorf("razorpay credentials not configured")
	}

	client := razorpay.NewClient(c.keyID, c.keySecret)
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}

	resp, err := client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("error creating razorpay order: %w", err)
	}

	orderID, ok := resp["id"].(string)
	if !ok || orderID == "" {
		return "", fmt.Errorf("razorpay order response missing id")
	}
	return orderID, nil
}

// PaymentService opens checkout orders and handles the synchronous
// client-side confirmation path.
type PaymentService struct {
	payments    store.PaymentRepository
	enrollments store.EnrollmentRepository
	catalog     store.CatalogRepository
	orders      OrderClient
	audit       AuditSink
	keyID       string
	keySecret   string
}

func NewPaymentService(payments store.PaymentRepository, enrollments store.EnrollmentRepository,
	catalog store.CatalogRepository, orders OrderClient, audit AuditSink, keyID, keySecret string) *PaymentService {
	return &PaymentService{
		payments:    payments,
		enrollments: enrollments,
		catalog:     catalog,
		orders:      orders,
		audit:       audit,
		keyID:       keyID,
		keySecret:   keySecret,
	}
}

// Checkout validates the user and course, opens a gateway order for the
// course price and records the payment in created status. A still-open
// payment for the same (user, course) is pointed at the fresh order instead
// of inserting a second record.
func (s *PaymentService) Checkout(ctx context.Context, userID, courseID string) (*models.CheckoutOrder, error) {
	user, err := s.catalog.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.E(errors.NotFound, "user not found")
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading user", err)
	}

	course, err := s.catalog.CourseByID(ctx, courseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.E(errors.NotFound, "course not found")
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading course", err)
	}

	if course.Price <= 0 {
		return nil, errors.E(errors.Invalid, "course has no payable price")
	}

	receipt := fmt.Sprintf("rcpt_%s_%s", user.ID, course.ID)
	orderID, err := s.orders.CreateOrder(course.Price, course.Currency, receipt)
	if err != nil {
		return nil, errors.E(errors.Internal, "error creating gateway order", err)
	}

	if open, err := s.payments.GetOpen(ctx, user.ID, course.ID); err == nil {
		if err := s.payments.ReplaceOrder(ctx, open.ID, orderID, course.Price); err != nil {
			return nil, errors.E(errors.Internal, "error reusing payment record", err)
		}
	} else {
		payment := &models.Payment{
			UserID:         user.ID,
			CourseID:       course.ID,
			InstitutionID:  course.InstitutionID,
			GatewayOrderID: orderID,
			Amount:         course.Price,
			Currency:       course.Currency,
			Status:         models.PaymentStatusCreated,
		}
		if err := s.payments.Create(ctx, payment); err != nil {
			return nil, errors.E(errors.Internal, "error saving payment", err)
		}
	}

	s.audit.Record("payment.initiated", map[string]interface{}{
		"user_id":   user.ID,
		"course_id": course.ID,
		"order_id":  orderID,
		"amount":    course.Price,
		"currency":  course.Currency,
	})

	logger.Info("Checkout order opened - User: %s, Course: %s, Order: %s, Amount: %d",
		user.ID, course.ID, orderID, course.Price)

	return &models.CheckoutOrder{
		OrderID:  orderID,
		Amount:   course.Price,
		Currency: course.Currency,
		Receipt:  receipt,
		KeyID:    s.keyID,
	}, nil
}

// VerifyResult is the outcome of the synchronous confirmation path.
type VerifyResult struct {
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
	EnrollmentID string `json:"enrollment_id"`
}

// Verify handles the client-side confirmation after checkout. It races the
// gateway webhook for the same payment; the store-level activation guard
// makes whichever path runs second a no-op.
func (s *PaymentService) Verify(ctx context.Context, orderID, gatewayPaymentID, signature string) (*VerifyResult, error) {
	if !VerifyCheckoutSignature(orderID, gatewayPaymentID, signature, s.keySecret) {
		return nil, errors.E(errors.Unauthorized, "invalid checkout signature")
	}

	payment, err := s.payments.GetByOrderID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.E(errors.NotFound, "payment not found for order "+orderID)
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading payment", err)
	}

	if err := s.payments.MarkCaptured(ctx, payment.ID, models.CaptureDetails{
		GatewayPaymentID: gatewayPaymentID,
		PaidAt:           time.Now().UTC(),
	}); err != nil {
		return nil, errors.E(errors.Internal, "error updating payment", err)
	}

	enr := &models.Enrollment{
		UserID:        payment.UserID,
		CourseID:      payment.CourseID,
		InstitutionID: payment.InstitutionID,
		PaymentID:     payment.ID,
		Status:        models.EnrollmentStatusActive,
		AccessStart:   time.Now().UTC(),
	}
	enrollmentID, created, err := s.enrollments.Activate(ctx, payment.ID, enr)
	if err != nil {
		return nil, errors.E(errors.Internal, "error activating enrollment", err)
	}

	if created {
		s.audit.Record("enrollment.activated", map[string]interface{}{
			"payment_id":    payment.ID,
			"order_id":      orderID,
			"enrollment_id": enrollmentID,
			"source":        "verify",
		})
	}

	logger.Info("Payment verified - Order: %s, Enrollment: %s", orderID, enrollmentID)
	return &VerifyResult{
		OrderID:      orderID,
		Status:       models.PaymentStatusCaptured,
		EnrollmentID: enrollmentID,
	}, nil
}
