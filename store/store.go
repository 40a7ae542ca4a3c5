package store

import (
	"context"
	"errors"

	"learnhub/models"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrCertificateIDCollision is returned when the generated certificate
	// id already exists for a different enrollment.
	ErrCertificateIDCollision = errors.New("certificate id already exists")
)

// PaymentRepository defines the persistence operations for payments and
// their append-only event trail.
type PaymentRepository interface {
	// Create persists a new payment in created status.
	Create(ctx context.Context, payment *models.Payment) error

	// GetByOrderID retrieves a payment by gateway order id.
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)

	// GetByGatewayPaymentID retrieves a payment by gateway payment id.
	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)

	// GetOpen returns a user's not-yet-captured payment for a course, if
	// one exists, so a re-checkout can reuse the record.
	GetOpen(ctx context.Context, userID, courseID string) (*models.Payment, error)

	// ReplaceOrder points a not-yet-captured payment at a fresh gateway
	// order (re-checkout after an abandoned attempt).
	ReplaceOrder(ctx context.Context, paymentID, orderID string, amount int64) error

	// AppendEvent appends one raw webhook delivery to the payment's event
	// trail. Events are never updated or deleted.
	AppendEvent(ctx context.Context, paymentID, event string, rawBody []byte) error

	// ListEvents returns the payment's event trail in delivery order.
	ListEvents(ctx context.Context, paymentID string) ([]models.PaymentEvent, error)

	// MarkCaptured records a capture. The update is a no-op once the payment
	// is refunded, keeping transitions monotonic under out-of-order delivery.
	// It does override failed: the gateway reports a failed attempt and a
	// later successful capture against the same order, and the capture wins
	// regardless of arrival order.
	MarkCaptured(ctx context.Context, paymentID string, details models.CaptureDetails) error

	// MarkFailed records a terminal failure; no-op unless the payment is
	// still in created or authorized.
	MarkFailed(ctx context.Context, paymentID, gatewayPaymentID string) error

	// MarkRefunded records a refund against a captured payment.
	MarkRefunded(ctx context.Context, paymentID string, details models.RefundDetails) error

	// ListByInstitution returns payments for dashboard listing and report
	// export, newest first.
	ListByInstitution(ctx context.Context, institutionID string) ([]models.Payment, error)
}

// EnrollmentRepository defines the persistence operations for enrollments.
type EnrollmentRepository interface {
	// GetByID retrieves an enrollment by id.
	GetByID(ctx context.Context, id string) (*models.Enrollment, error)

	// ListByUser returns a user's enrollments, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error)

	// Activate atomically creates enr and links it to the payment, but only
	// if the payment has no linked enrollment yet. It returns the linked
	// enrollment id and whether this call created it. Concurrent callers
	// for the same payment are serialized by the store; exactly one wins.
	Activate(ctx context.Context, paymentID string, enr *models.Enrollment) (string, bool, error)

	// MarkRefunded transitions an enrollment to refunded.
	MarkRefunded(ctx context.Context, enrollmentID string) error
}

// CertificateRepository defines the persistence operations for certificates.
type CertificateRepository interface {
	// GetByID retrieves a certificate by its human-readable id.
	GetByID(ctx context.Context, certID string) (*models.Certificate, error)

	// Issue writes the certificate record and stamps the enrollment
	// (certificate_id, certificate_eligible, status=completed) in a single
	// transaction, but only if the enrollment has no certificate yet. It
	// returns the winning certificate id and whether this call issued it.
	Issue(ctx context.Context, cert *models.Certificate) (string, bool, error)
}

// CatalogRepository resolves the user/course/institution records the
// payment and certificate paths depend on. Catalog management itself lives
// outside this service.
type CatalogRepository interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByToken(ctx context.Context, apiToken string) (*models.User, error)
	CourseByID(ctx context.Context, id string) (*models.Course, error)
	InstitutionByID(ctx context.Context, id string) (*models.Institution, error)
}
