package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"learnhub/models"
	"learnhub/store"

	"github.com/google/uuid"
)

// EnrollmentRepository is a PostgreSQL implementation of store.EnrollmentRepository.
type EnrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository creates a new PostgreSQL enrollment repository.
func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, user_id, course_id, institution_id, payment_id,
	status, access_start, access_end, progress, certificate_id,
	certificate_eligible, created_at, updated_at`

func scanEnrollment(row interface{ Scan(...interface{}) error }) (*models.Enrollment, error) {
	var e models.Enrollment
	var paymentID, certificateID sql.NullString
	var accessEnd sql.NullTime

	err := row.Scan(
		&e.ID, &e.UserID, &e.CourseID, &e.InstitutionID, &paymentID,
		&e.Status, &e.AccessStart, &accessEnd, &e.Progress, &certificateID,
		&e.CertificateEligible, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.PaymentID = strOf(paymentID)
	e.CertificateID = strOf(certificateID)
	if accessEnd.Valid {
		t := accessEnd.Time
		e.AccessEnd = &t
	}
	return &e, nil
}

// GetByID retrieves an enrollment by id.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

// ListByUser returns a user's enrollments, newest first.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	enrollments := []models.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, rows.Err()
}

// Activate atomically creates enr and links it to the payment. The payment
// row is locked for the duration of the transaction, so concurrent webhook
// deliveries (or the synchronous verify path racing a webhook) serialize
// here and exactly one caller creates the enrollment. The losing caller
// gets the winner's enrollment id back.
func (r *EnrollmentRepository) Activate(ctx context.Context, paymentID string, enr *models.Enrollment) (string, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var existing sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT enrollment_id FROM payments WHERE id = $1 FOR UPDATE`, paymentID,
	).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, store.ErrNotFound
	}
	if err != nil {
		return "", false, fmt.Errorf("error locking payment: %w", err)
	}

	// Already linked: the enrollment exists, this delivery is a duplicate.
	if existing.Valid && existing.String != "" {
		return existing.String, false, tx.Commit()
	}

	if enr.ID == "" {
		enr.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enr.CreatedAt = now
	enr.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO enrollments (id, user_id, course_id, institution_id,
			payment_id, status, access_start, access_end, progress,
			certificate_eligible, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		enr.ID, enr.UserID, enr.CourseID, enr.InstitutionID,
		paymentID, enr.Status, enr.AccessStart, enr.AccessEnd, enr.Progress,
		enr.CertificateEligible, enr.CreatedAt, enr.UpdatedAt,
	)
	if err != nil {
		return "", false, fmt.Errorf("error inserting enrollment: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE payments SET enrollment_id = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND enrollment_id IS NULL`,
		enr.ID, paymentID,
	)
	if err != nil {
		return "", false, fmt.Errorf("error linking enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if rows == 0 {
		// Cannot happen while we hold the row lock, but fail loudly rather
		// than commit a second enrollment for the payment.
		return "", false, fmt.Errorf("payment %s concurrently linked", paymentID)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("error committing activation: %w", err)
	}
	return enr.ID, true, nil
}

// MarkRefunded transitions an enrollment to refunded.
func (r *EnrollmentRepository) MarkRefunded(ctx context.Context, enrollmentID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE enrollments SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`,
		models.EnrollmentStatusRefunded, enrollmentID,
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
