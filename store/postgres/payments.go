package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"learnhub/models"
	"learnhub/store"

	"github.com/google/uuid"
)

// PaymentRepository is a PostgreSQL implementation of store.PaymentRepository.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, course_id, institution_id, gateway_order_id,
	gateway_payment_id, amount, currency, status, method, bank,
	refund_id, refund_amount, refund_reason, enrollment_id, paid_at,
	created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*models.Payment, error) {
	var p models.Payment
	var gatewayPaymentID, method, bank, refundID, refundReason, enrollmentID sql.NullString
	var refundAmount sql.NullInt64
	var paidAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.UserID, &p.CourseID, &p.InstitutionID, &p.GatewayOrderID,
		&gatewayPaymentID, &p.Amount, &p.Currency, &p.Status, &method, &bank,
		&refundID, &refundAmount, &refundReason, &enrollmentID, &paidAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.GatewayPaymentID = strOf(gatewayPaymentID)
	p.Method = strOf(method)
	p.Bank = strOf(bank)
	p.RefundID = strOf(refundID)
	p.RefundReason = strOf(refundReason)
	p.EnrollmentID = strOf(enrollmentID)
	if refundAmount.Valid {
		p.RefundAmount = refundAmount.Int64
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	query := `
		INSERT INTO payments (id, user_id, course_id, institution_id,
			gateway_order_id, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.UserID, payment.CourseID, payment.InstitutionID,
		payment.GatewayOrderID, payment.Amount, payment.Currency, payment.Status,
		payment.CreatedAt, payment.UpdatedAt,
	)
	return err
}

// GetByOrderID retrieves a payment by gateway order id.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

// GetByGatewayPaymentID retrieves a payment by gateway payment id.
func (r *PaymentRepository) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_payment_id = $1`, gatewayPaymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

// GetOpen returns a user's not-yet-captured payment for a course, if any.
func (r *PaymentRepository) GetOpen(ctx context.Context, userID, courseID string) (*models.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1 AND course_id = $2 AND status IN ($3, $4)
		ORDER BY created_at DESC LIMIT 1`,
		userID, courseID, models.PaymentStatusCreated, models.PaymentStatusFailed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

// ReplaceOrder points a not-yet-captured payment at a fresh gateway order.
func (r *PaymentRepository) ReplaceOrder(ctx context.Context, paymentID, orderID string, amount int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET gateway_order_id = $1, amount = $2, status = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4 AND status IN ($5, $6)`,
		orderID, amount, models.PaymentStatusCreated,
		paymentID, models.PaymentStatusCreated, models.PaymentStatusFailed,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendEvent appends one raw webhook delivery to the payment's event trail.
func (r *PaymentRepository) AppendEvent(ctx context.Context, paymentID, event string, rawBody []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_events (id, payment_id, event, raw_body, received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), paymentID, event, rawBody, time.Now().UTC(),
	)
	return err
}

// ListEvents returns the payment's event trail in delivery order.
func (r *PaymentRepository) ListEvents(ctx context.Context, paymentID string) ([]models.PaymentEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_id, event, raw_body, received_at
		FROM payment_events WHERE payment_id = $1 ORDER BY received_at ASC`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.PaymentEvent{}
	for rows.Next() {
		var e models.PaymentEvent
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Event, &e.RawBody, &e.ReceivedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkCaptured records a capture. The WHERE clause keeps the transition
// monotonic: a capture delivered after a refund is ignored. A capture does
// override failed, because the gateway delivers payment.failed for an early
// attempt and payment.captured for a later successful one on the same
// order, in either arrival order.
func (r *PaymentRepository) MarkCaptured(ctx context.Context, paymentID string, details models.CaptureDetails) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, gateway_payment_id = $2, method = $3, bank = $4,
			paid_at = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND status IN ($7, $8, $9, $10)`,
		models.PaymentStatusCaptured, details.GatewayPaymentID,
		nullStr(details.Method), nullStr(details.Bank), details.PaidAt,
		paymentID,
		models.PaymentStatusCreated, models.PaymentStatusAuthorized,
		models.PaymentStatusCaptured, models.PaymentStatusFailed,
	)
	return err
}

// MarkFailed records a terminal failure from created or authorized.
func (r *PaymentRepository) MarkFailed(ctx context.Context, paymentID, gatewayPaymentID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, gateway_payment_id = COALESCE($2, gateway_payment_id),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status IN ($4, $5)`,
		models.PaymentStatusFailed, nullStr(gatewayPaymentID),
		paymentID, models.PaymentStatusCreated, models.PaymentStatusAuthorized,
	)
	return err
}

// MarkRefunded records a refund against a captured payment. A refund amount
// smaller than the payment amount leaves the payment partially refunded.
func (r *PaymentRepository) MarkRefunded(ctx context.Context, paymentID string, details models.RefundDetails) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = CASE WHEN $1 > 0 AND $1 < amount THEN $2 ELSE $3 END,
			refund_id = $4, refund_amount = $1, refund_reason = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND status IN ($7, $8)`,
		details.Amount, models.PaymentStatusPartiallyRefunded, models.PaymentStatusRefunded,
		details.RefundID, nullStr(details.Reason),
		paymentID, models.PaymentStatusCaptured, models.PaymentStatusPartiallyRefunded,
	)
	return err
}

// ListByInstitution returns payments for an institution, newest first.
func (r *PaymentRepository) ListByInstitution(ctx context.Context, institutionID string) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE institution_id = $1 ORDER BY created_at DESC`,
		institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
