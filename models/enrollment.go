package models

import "time"

// Enrollment statuses. completed is reached only through certificate
// issuance; refunded only through a refund webhook on the linked payment.
const (
	EnrollmentStatusPendingPayment = "pending_payment"
	EnrollmentStatusActive         = "active"
	EnrollmentStatusCompleted      = "completed"
	EnrollmentStatusExpired        = "expired"
	EnrollmentStatusCancelled      = "cancelled"
	EnrollmentStatusRefunded       = "refunded"
)

// Enrollment is a user's access grant to a course. At most one enrollment
// per (user, course) is ever active at a time.
type Enrollment struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	CourseID      string     `json:"course_id"`
	InstitutionID string     `json:"institution_id"`
	// PaymentID is empty for free-course signups.
	PaymentID           string     `json:"payment_id,omitempty"`
	Status              string     `json:"status"`
	AccessStart         time.Time  `json:"access_start"`
	AccessEnd           *time.Time `json:"access_end,omitempty"`
	Progress            int        `json:"progress"`
	CertificateID       string     `json:"certificate_id,omitempty"`
	CertificateEligible bool       `json:"certificate_eligible"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
