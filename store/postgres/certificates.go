package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"learnhub/models"
	"learnhub/store"

	"github.com/lib/pq"
)

// CertificateRepository is a PostgreSQL implementation of store.CertificateRepository.
type CertificateRepository struct {
	db *sql.DB
}

// NewCertificateRepository creates a new PostgreSQL certificate repository.
func NewCertificateRepository(db *sql.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// GetByID retrieves a certificate by its human-readable id.
func (r *CertificateRepository) GetByID(ctx context.Context, certID string) (*models.Certificate, error) {
	var c models.Certificate
	var grade, documentPath, filePath, documentURL, verificationURL, revokedReason sql.NullString
	var finalScore sql.NullFloat64

	err := r.db.QueryRowContext(ctx, `
		SELECT id, enrollment_id, recipient_name, course_title, institution_name,
			grade, final_score, document_path, file_path, document_url,
			verification_url, status, revoked_reason, issued_at
		FROM certificates WHERE id = $1`, certID,
	).Scan(
		&c.ID, &c.EnrollmentID, &c.RecipientName, &c.CourseTitle, &c.InstitutionName,
		&grade, &finalScore, &documentPath, &filePath, &documentURL,
		&verificationURL, &c.Status, &revokedReason, &c.IssuedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Grade = strOf(grade)
	c.DocumentPath = strOf(documentPath)
	c.FilePath = strOf(filePath)
	c.DocumentURL = strOf(documentURL)
	c.VerificationURL = strOf(verificationURL)
	c.RevokedReason = strOf(revokedReason)
	if finalScore.Valid {
		v := finalScore.Float64
		c.FinalScore = &v
	}
	return &c, nil
}

// Issue stamps the enrollment and writes the certificate record in one
// transaction. The conditional update on certificate_id IS NULL is the
// atomic check-and-set that makes a retried or concurrent issue call
// return the existing certificate instead of creating a second one.
func (r *CertificateRepository) Issue(ctx context.Context, cert *models.Certificate) (string, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE enrollments
		SET certificate_id = $1, certificate_eligible = TRUE, status = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND certificate_id IS NULL`,
		cert.ID, models.EnrollmentStatusCompleted, cert.EnrollmentID,
	)
	if err != nil {
		return "", false, fmt.Errorf("error stamping enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if rows == 0 {
		// Lost to an earlier or concurrent issuance; report its id.
		tx.Rollback()
		var existing sql.NullString
		err := r.db.QueryRowContext(ctx,
			`SELECT certificate_id FROM enrollments WHERE id = $1`, cert.EnrollmentID,
		).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, store.ErrNotFound
		}
		if err != nil {
			return "", false, err
		}
		return existing.String, false, nil
	}

	cert.IssuedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO certificates (id, enrollment_id, recipient_name, course_title,
			institution_name, grade, final_score, document_path, file_path,
			document_url, verification_url, status, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		cert.ID, cert.EnrollmentID, cert.RecipientName, cert.CourseTitle,
		cert.InstitutionName, nullStr(cert.Grade), cert.FinalScore,
		nullStr(cert.DocumentPath), nullStr(cert.FilePath),
		nullStr(cert.DocumentURL), nullStr(cert.VerificationURL),
		cert.Status, cert.IssuedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return "", false, store.ErrCertificateIDCollision
		}
		return "", false, fmt.Errorf("error inserting certificate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("error committing issuance: %w", err)
	}
	return cert.ID, true, nil
}
