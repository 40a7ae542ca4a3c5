package models

import "time"

// User roles.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	InstitutionID string    `json:"institution_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type Course struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	InstitutionID string    `json:"institution_id"`
	InstructorID  string    `json:"instructor_id"`
	// Price in the smallest currency unit.
	Price     int64     `json:"price"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	// CertificateTemplate is the name of the institution's template document
	// in the document service; empty means certificates cannot be issued.
	CertificateTemplate string `json:"certificate_template,omitempty"`
	// CertificateFolder is the storage folder issued certificate files are
	// uploaded under.
	CertificateFolder string    `json:"certificate_folder,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Actor is the resolved identity of an authenticated caller.
type Actor struct {
	UID           string
	Role          string
	InstitutionID string
}

// CanIssueCertificates reports whether the actor's role may trigger
// certificate issuance at all; institution scoping is checked separately.
func (a Actor) CanIssueCertificates() bool {
	return a.Role == RoleInstructor || a.Role == RoleAdmin || a.Role == RoleSuperadmin
}

// CrossInstitution reports whether the actor may act outside their own
// institution.
func (a Actor) CrossInstitution() bool {
	return a.Role == RoleSuperadmin
}
