package models

import "time"

// Certificate statuses.
const (
	CertificateStatusGenerated = "generated"
	CertificateStatusIssued    = "issued"
	CertificateStatusRevoked   = "revoked"
)

// Certificate is proof of course completion. Name snapshots are denormalized
// at issue time and immutable afterwards; exactly one certificate exists per
// enrollment, with Enrollment.CertificateID as the source of truth for
// "already issued".
type Certificate struct {
	// ID is the human-readable certificate id ({SLUG}-{YEAR}-{SUFFIX}) and
	// the primary key, so an actual suffix collision fails the insert
	// instead of silently overwriting.
	ID              string    `json:"id"`
	EnrollmentID    string    `json:"enrollment_id"`
	RecipientName   string    `json:"recipient_name"`
	CourseTitle     string    `json:"course_title"`
	InstitutionName string    `json:"institution_name"`
	Grade           string    `json:"grade,omitempty"`
	FinalScore      *float64  `json:"final_score,omitempty"`
	DocumentPath    string    `json:"document_path"`
	FilePath        string    `json:"file_path"`
	DocumentURL     string    `json:"document_url"`
	VerificationURL string    `json:"verification_url"`
	Status          string    `json:"status"`
	RevokedReason   string    `json:"revoked_reason,omitempty"`
	IssuedAt        time.Time `json:"issued_at"`
}

// IssueResult is the response body of a successful (or already-issued)
// certificate issuance.
type IssueResult struct {
	CertificateID   string `json:"certificate_id"`
	DocumentURL     string `json:"document_url"`
	VerificationURL string `json:"verification_url"`
	AlreadyIssued   bool   `json:"already_issued,omitempty"`
}
