package services

import (
	"context"
	"encoding/json"
	"time"

	"learnhub/errors"
	"learnhub/logger"
	"learnhub/models"
	"learnhub/store"
)

// Gateway webhook event types this system models. Anything else is
// acknowledged and ignored so the sender does not retry forever.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundCreated   = "refund.created"
)

// webhookEnvelope is the outer shape of every gateway delivery. The payload
// is kept raw until the event type is known.
type webhookEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type paymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
	Bank     string `json:"bank"`
}

type refundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

type paymentPayload struct {
	Payment struct {
		Entity paymentEntity `json:"entity"`
	} `json:"payment"`
}

type refundPayload struct {
	Refund struct {
		Entity refundEntity `json:"entity"`
	} `json:"refund"`
}

// gatewayEvent is the decoded form of a delivery: exactly one of Payment or
// Refund is set for recognized kinds, neither for Unrecognized.
type gatewayEvent struct {
	Kind         string
	Payment      *paymentEntity
	Refund       *refundEntity
	Unrecognized bool
}

// decodeEvent parses the raw body into a gatewayEvent. Recognized kinds get
// their typed entity; unknown kinds come back with Unrecognized set so the
// dispatcher can acknowledge without touching state.
func decodeEvent(rawBody []byte) (*gatewayEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, errors.E(errors.Invalid, "malformed webhook body", err)
	}
	if env.Event == "" {
		return nil, errors.E(errors.Invalid, "webhook body missing event type")
	}

	switch env.Event {
	case EventPaymentCaptured, EventPaymentFailed:
		var p paymentPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, errors.E(errors.Invalid, "malformed payment payload", err)
		}
		if p.Payment.Entity.OrderID == "" {
			return nil, errors.E(errors.Invalid, "payment entity missing order_id")
		}
		if p.Payment.Entity.Amount < 0 {
			return nil, errors.E(errors.Invalid, "payment entity has negative amount")
		}
		return &gatewayEvent{Kind: env.Event, Payment: &p.Payment.Entity}, nil

	case EventRefundCreated:
		var r refundPayload
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			return nil, errors.E(errors.Invalid, "malformed refund payload", err)
		}
		if r.Refund.Entity.PaymentID == "" {
			return nil, errors.E(errors.Invalid, "refund entity missing payment_id")
		}
		return &gatewayEvent{Kind: env.Event, Refund: &r.Refund.Entity}, nil

	default:
		return &gatewayEvent{Kind: env.Event, Unrecognized: true}, nil
	}
}

// Ack is the dispatcher's answer for a delivery that should not be retried
// by the sender.
type Ack struct {
	Status       string `json:"status"` // processed, acknowledged or ignored
	Event        string `json:"event"`
	OrderID      string `json:"order_id,omitempty"`
	EnrollmentID string `json:"enrollment_id,omitempty"`
}

// WebhookService verifies, decodes and applies gateway webhook deliveries.
type WebhookService struct {
	payments    store.PaymentRepository
	enrollments store.EnrollmentRepository
	audit       AuditSink
	secret      string
}

// NewWebhookService creates a webhook dispatcher using the given shared
// webhook secret.
func NewWebhookService(payments store.PaymentRepository, enrollments store.EnrollmentRepository, audit AuditSink, secret string) *WebhookService {
	return &WebhookService{
		payments:    payments,
		enrollments: enrollments,
		audit:       audit,
		secret:      secret,
	}
}

// HandleEvent processes one raw delivery. An error return means the sender
// should see a failure status (signature or body problems only); any Ack
// return must be answered with success so the gateway stops retrying
// duplicates and events this system cannot act on.
func (s *WebhookService) HandleEvent(ctx context.Context, rawBody []byte, signature string) (*Ack, error) {
	if !VerifyWebhookSignature(rawBody, signature, s.secret) {
		return nil, errors.E(errors.Unauthorized, "invalid webhook signature")
	}

	event, err := decodeEvent(rawBody)
	if err != nil {
		return nil, err
	}

	switch event.Kind {
	case EventPaymentCaptured:
		return s.handleCaptured(ctx, event.Payment, rawBody)
	case EventPaymentFailed:
		return s.handleFailed(ctx, event.Payment, rawBody)
	case EventRefundCreated:
		return s.handleRefund(ctx, event.Refund, rawBody)
	default:
		logger.Info("Unhandled webhook event type %q, acknowledging", event.Kind)
		return &Ack{Status: "acknowledged", Event: event.Kind}, nil
	}
}

// handleCaptured records the capture and activates the enrollment. Both
// steps are idempotent: the capture update is monotonic and the activation
// is an atomic create-if-unlinked, so duplicate or concurrent deliveries
// collapse into one enrollment while every delivery still lands in the
// event trail.
func (s *WebhookService) handleCaptured(ctx context.Context, ent *paymentEntity, rawBody []byte) (*Ack, error) {
	payment, err := s.payments.GetByOrderID(ctx, ent.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		// A gateway retry cannot make a missing local record appear, so
		// drop the event instead of asking for redelivery.
		logger.Warn("payment.captured for unknown order %s, dropping", ent.OrderID)
		return &Ack{Status: "ignored", Event: EventPaymentCaptured, OrderID: ent.OrderID}, nil
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading payment", err)
	}

	if err := s.payments.AppendEvent(ctx, payment.ID, EventPaymentCaptured, rawBody); err != nil {
		return nil, errors.E(errors.Internal, "error recording webhook event", err)
	}

	if payment.Status == models.PaymentStatusCaptured && payment.EnrollmentID != "" {
		logger.Info("Duplicate payment.captured for order %s, already processed", ent.OrderID)
		return &Ack{
			Status:       "processed",
			Event:        EventPaymentCaptured,
			OrderID:      ent.OrderID,
			EnrollmentID: payment.EnrollmentID,
		}, nil
	}

	details := models.CaptureDetails{
		GatewayPaymentID: ent.ID,
		Method:           ent.Method,
		Bank:             ent.Bank,
		PaidAt:           time.Now().UTC(),
	}
	if err := s.payments.MarkCaptured(ctx, payment.ID, details); err != nil {
		return nil, errors.E(errors.Internal, "error updating payment", err)
	}

	enrollmentID, created, err := s.activateEnrollment(ctx, payment)
	if err != nil {
		return nil, err
	}

	if created {
		s.audit.Record("enrollment.activated", map[string]interface{}{
			"payment_id":    payment.ID,
			"order_id":      ent.OrderID,
			"enrollment_id": enrollmentID,
			"source":        "webhook",
		})
	}

	logger.Info("payment.captured processed - Order: %s, Payment: %s, Enrollment: %s",
		ent.OrderID, ent.ID, enrollmentID)
	return &Ack{
		Status:       "processed",
		Event:        EventPaymentCaptured,
		OrderID:      ent.OrderID,
		EnrollmentID: enrollmentID,
	}, nil
}

func (s *WebhookService) handleFailed(ctx context.Context, ent *paymentEntity, rawBody []byte) (*Ack, error) {
	payment, err := s.payments.GetByOrderID(ctx, ent.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("payment.failed for unknown order %s, dropping", ent.OrderID)
		return &Ack{Status: "ignored", Event: EventPaymentFailed, OrderID: ent.OrderID}, nil
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading payment", err)
	}

	if err := s.payments.AppendEvent(ctx, payment.ID, EventPaymentFailed, rawBody); err != nil {
		return nil, errors.E(errors.Internal, "error recording webhook event", err)
	}

	// No enrollment side effect: none was ever created for this payment.
	if err := s.payments.MarkFailed(ctx, payment.ID, ent.ID); err != nil {
		return nil, errors.E(errors.Internal, "error updating payment", err)
	}

	logger.Info("payment.failed processed - Order: %s", ent.OrderID)
	return &Ack{Status: "processed", Event: EventPaymentFailed, OrderID: ent.OrderID}, nil
}

func (s *WebhookService) handleRefund(ctx context.Context, ent *refundEntity, rawBody []byte) (*Ack, error) {
	payment, err := s.payments.GetByGatewayPaymentID(ctx, ent.PaymentID)
	if errors.Is(err, store.ErrNotFound) {
		// Stale or foreign refund; retrying would not resolve it.
		logger.Warn("refund.created for unknown gateway payment %s, dropping", ent.PaymentID)
		return &Ack{Status: "ignored", Event: EventRefundCreated}, nil
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading payment", err)
	}

	if err := s.payments.AppendEvent(ctx, payment.ID, EventRefundCreated, rawBody); err != nil {
		return nil, errors.E(errors.Internal, "error recording webhook event", err)
	}

	details := models.RefundDetails{
		RefundID: ent.ID,
		Amount:   ent.Amount,
		Reason:   ent.Reason,
	}
	if err := s.payments.MarkRefunded(ctx, payment.ID, details); err != nil {
		return nil, errors.E(errors.Internal, "error updating payment", err)
	}

	if payment.EnrollmentID != "" {
		if err := s.enrollments.MarkRefunded(ctx, payment.EnrollmentID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, errors.E(errors.Internal, "error updating enrollment", err)
		}
	}

	s.audit.Record("payment.refunded", map[string]interface{}{
		"payment_id":    payment.ID,
		"refund_id":     ent.ID,
		"refund_amount": ent.Amount,
		"enrollment_id": payment.EnrollmentID,
	})

	logger.Info("refund.created processed - Payment: %s, Refund: %s", ent.PaymentID, ent.ID)
	return &Ack{Status: "processed", Event: EventRefundCreated, OrderID: payment.GatewayOrderID}, nil
}

// activateEnrollment funnels enrollment creation through the store's atomic
// create-if-unlinked. Both the webhook path and the synchronous verify path
// call this, so whichever runs second becomes a no-op.
func (s *WebhookService) activateEnrollment(ctx context.Context, payment *models.Payment) (string, bool, error) {
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
		return "", false, errors.E(errors.Internal, "error activating enrollment", err)
	}
	return enrollmentID, created, nil
}
