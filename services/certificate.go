package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"learnhub/document"
	"learnhub/errors"
	"learnhub/logger"
	"learnhub/models"
	"learnhub/storage"
	"learnhub/store"
)

// Placeholder markers the institution templates carry. Merging is a literal
// replace-all of these exact strings.
const (
	markerRecipient   = "{{RECIPIENT_NAME}}"
	markerCourse      = "{{COURSE_TITLE}}"
	markerInstitution = "{{INSTITUTION_NAME}}"
	markerCertID      = "{{CERTIFICATE_ID}}"
	markerIssueDate   = "{{ISSUE_DATE}}"
	markerGrade       = "{{GRADE}}"
	markerScore       = "{{FINAL_SCORE}}"
)

const certSuffixLen = 5

// CertificateService orchestrates the issuance pipeline: template copy,
// field merge, PDF export, upload, public grant, record write. The external
// steps have no transaction around them; safety on retry comes from keying
// the working copy and upload names on the enrollment id, so a re-run
// overwrites its own artifacts instead of creating duplicates.
type CertificateService struct {
	enrollments  store.EnrollmentRepository
	certificates store.CertificateRepository
	catalog      store.CatalogRepository
	docs         document.Service
	files        storage.Service
	audit        AuditSink
	mailer       Mailer
	baseURL      string
}

func NewCertificateService(enrollments store.EnrollmentRepository, certificates store.CertificateRepository,
	catalog store.CatalogRepository, docs document.Service, files storage.Service,
	audit AuditSink, mailer Mailer, baseURL string) *CertificateService {
	return &CertificateService{
		enrollments:  enrollments,
		certificates: certificates,
		catalog:      catalog,
		docs:         docs,
		files:        files,
		audit:        audit,
		mailer:       mailer,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

// Issue runs the issuance pipeline for an enrollment. When the enrollment
// already carries a certificate the existing id is returned with
// AlreadyIssued set and no external step runs; callers surface that as a
// conflict, not a failure, so retries stay safe.
func (s *CertificateService) Issue(ctx context.Context, actor models.Actor, enrollmentID, grade string, finalScore *float64) (*models.IssueResult, error) {
	enr, err := s.enrollments.GetByID(ctx, enrollmentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.E(errors.NotFound, "enrollment not found")
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading enrollment", err)
	}

	if !actor.CanIssueCertificates() {
		return nil, errors.E(errors.Forbidden, "role may not issue certificates")
	}
	if !actor.CrossInstitution() && actor.InstitutionID != enr.InstitutionID {
		return nil, errors.E(errors.Forbidden, "enrollment belongs to another institution")
	}

	// Idempotency guard: a retried issue request returns the existing id.
	if enr.CertificateID != "" {
		return s.existingResult(ctx, enr.CertificateID)
	}

	user, err := s.catalog.UserByID(ctx, enr.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.E(errors.NotFound, "enrollment user not found")
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading user", err)
	}
	course, err := s.catalog.CourseByID(ctx, enr.CourseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.E(errors.NotFound, "enrollment course not found")
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading course", err)
	}
	inst, err := s.catalog.InstitutionByID(ctx, enr.InstitutionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.E(errors.NotFound, "enrollment institution not found")
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading institution", err)
	}

	// Misconfiguration, not a transient error; retrying without fixing the
	// institution setup fails identically.
	if inst.CertificateTemplate == "" {
		return nil, errors.E(errors.Precondition, "institution has no certificate template configured")
	}

	certID := generateCertificateID(inst.Slug)
	issueDate := time.Now().UTC()

	// Working copy and upload names derive from the enrollment id, not the
	// random certificate id, so a retry after a late failure reuses them.
	workingName := "cert_" + enr.ID
	docRef, err := s.docs.CopyTemplate(ctx, inst.CertificateTemplate, workingName)
	if err != nil {
		return nil, errors.E(errors.Internal, "error copying certificate template", err)
	}

	fields := map[string]string{
		markerRecipient:   user.Name,
		markerCourse:      course.Title,
		markerInstitution: inst.Name,
		markerCertID:      certID,
		markerIssueDate:   issueDate.Format("2 January 2006"),
		markerGrade:       grade,
		markerScore:       formatScore(finalScore),
	}
	if err := s.docs.MergeFields(ctx, docRef, fields); err != nil {
		return nil, errors.E(errors.Internal, "error merging certificate fields", err)
	}

	pdf, err := s.docs.ExportPDF(ctx, docRef)
	if err != nil {
		return nil, errors.E(errors.Internal, "error exporting certificate PDF", err)
	}

	folder := inst.CertificateFolder
	if folder == "" {
		folder = "certificates/" + inst.Slug
	}
	fileRef, err := s.files.Upload(ctx, folder, workingName+".pdf", pdf)
	if err != nil {
		return nil, errors.E(errors.Internal, "error uploading certificate file", err)
	}

	documentURL, err := s.files.GrantPublicRead(ctx, fileRef)
	if err != nil {
		return nil, errors.E(errors.Internal, "error granting public access", err)
	}

	verificationURL := s.baseURL + "/certificates/verify?id=" + url.QueryEscape(certID)

	cert := &models.Certificate{
		ID:              certID,
		EnrollmentID:    enr.ID,
		RecipientName:   user.Name,
		CourseTitle:     course.Title,
		InstitutionName: inst.Name,
		Grade:           grade,
		FinalScore:      finalScore,
		DocumentPath:    docRef,
		FilePath:        fileRef,
		DocumentURL:     documentURL,
		VerificationURL: verificationURL,
		Status:          models.CertificateStatusIssued,
	}

	winnerID, issued, err := s.certificates.Issue(ctx, cert)
	if err != nil {
		return nil, errors.E(errors.Internal, "error writing certificate record", err)
	}
	if !issued {
		// A concurrent issue call won the check-and-set; report its
		// certificate and leave our artifacts for the next overwrite.
		return s.existingResult(ctx, winnerID)
	}

	s.audit.Record("certificate.issued", map[string]interface{}{
		"actor_uid":      actor.UID,
		"enrollment_id":  enr.ID,
		"certificate_id": certID,
		"grade":          grade,
		"final_score":    formatScore(finalScore),
	})

	if s.mailer != nil && user.Email != "" {
		go func(to, name string) {
			if err := s.mailer.SendCertificateIssued(to, name, certID, verificationURL, pdf); err != nil {
				logger.Warn("failed to send certificate email to %s: %v", to, err)
			}
		}(user.Email, user.Name)
	}

	logger.Info("Certificate issued - Enrollment: %s, Certificate: %s", enr.ID, certID)
	return &models.IssueResult{
		CertificateID:   certID,
		DocumentURL:     documentURL,
		VerificationURL: verificationURL,
	}, nil
}

// Lookup returns a certificate snapshot for public verification.
func (s *CertificateService) Lookup(ctx context.Context, certID string) (*models.Certificate, error) {
	cert, err := s.certificates.GetByID(ctx, certID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.E(errors.NotFound, "certificate not found")
	}
	if err != nil {
		return nil, errors.E(errors.Internal, "error loading certificate", err)
	}
	return cert, nil
}

func (s *CertificateService) existingResult(ctx context.Context, certID string) (*models.IssueResult, error) {
	cert, err := s.certificates.GetByID(ctx, certID)
	if err != nil {
		// The enrollment points at a certificate we cannot load; still
		// report the id so the caller is not tempted to re-issue.
		logger.Error("enrollment references certificate %s that failed to load: %v", certID, err)
		return &models.IssueResult{CertificateID: certID, AlreadyIssued: true}, nil
	}
	return &models.IssueResult{
		CertificateID:   cert.ID,
		DocumentURL:     cert.DocumentURL,
		VerificationURL: cert.VerificationURL,
		AlreadyIssued:   true,
	}, nil
}

const certIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateCertificateID builds {SLUG}-{YEAR}-{SUFFIX}. The suffix is random
// but not guaranteed unique; the record write uses the id as primary key so
// a real collision fails loudly instead of overwriting.
func generateCertificateID(slug string) string {
	b := make([]byte, certSuffixLen)
	// crypto/rand.Read never fails; it crashes the program instead.
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = certIDCharset[int(b[i])%len(certIDCharset)]
	}
	return fmt.Sprintf("%s-%d-%s", strings.ToUpper(slug), time.Now().UTC().Year(), string(b))
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}
