package services

import (
	"context"
	"sync"
	"time"

	"learnhub/models"
	"learnhub/store"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the postgres repositories. One
// mutex covers everything, which is what makes the cross-entity guards
// (payment -> enrollment link, enrollment -> certificate stamp) as atomic
// as their SQL counterparts.
type memStore struct {
	mu           sync.Mutex
	payments     map[string]*models.Payment
	events       []models.PaymentEvent
	enrollments  map[string]*models.Enrollment
	certificates map[string]*models.Certificate
	users        map[string]*models.User
	courses      map[string]*models.Course
	institutions map[string]*models.Institution

	activateCalls  int
	appendEventErr error
}

func newMemStore() *memStore {
	return &memStore{
		payments:     make(map[string]*models.Payment),
		enrollments:  make(map[string]*models.Enrollment),
		certificates: make(map[string]*models.Certificate),
		users:        make(map[string]*models.User),
		courses:      make(map[string]*models.Course),
		institutions: make(map[string]*models.Institution),
	}
}

func (m *memStore) addPayment(p models.Payment) *models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	m.payments[p.ID] = &p
	return &p
}

func (m *memStore) addEnrollment(e models.Enrollment) *models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.enrollments[e.ID] = &e
	return &e
}

func (m *memStore) addUser(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
	return &u
}

func (m *memStore) addCourse(c models.Course) *models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = &c
	return &c
}

func (m *memStore) addInstitution(i models.Institution) *models.Institution {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.institutions[i.ID] = &i
	return &i
}

func (m *memStore) payment(id string) models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.payments[id]
}

func (m *memStore) enrollment(id string) models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.enrollments[id]
}

func (m *memStore) enrollmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.enrollments)
}

func (m *memStore) certificateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.certificates)
}

// PaymentRepository

func (m *memStore) Create(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memStore) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.GatewayOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.GatewayPaymentID == gatewayPaymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetOpen(ctx context.Context, userID, courseID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.UserID == userID && p.CourseID == courseID &&
			(p.Status == models.PaymentStatusCreated || p.Status == models.PaymentStatusFailed) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ReplaceOrder(ctx context.Context, paymentID, orderID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return store.ErrNotFound
	}
	p.GatewayOrderID = orderID
	p.Amount = amount
	p.Status = models.PaymentStatusCreated
	return nil
}

func (m *memStore) AppendEvent(ctx context.Context, paymentID, event string, rawBody []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendEventErr != nil {
		return m.appendEventErr
	}
	m.events = append(m.events, models.PaymentEvent{
		ID:         uuid.NewString(),
		PaymentID:  paymentID,
		Event:      event,
		RawBody:    append([]byte(nil), rawBody...),
		ReceivedAt: time.Now().UTC(),
	})
	return nil
}

func (m *memStore) ListEvents(ctx context.Context, paymentID string) ([]models.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentEvent
	for _, e := range m.events {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MarkCaptured mirrors the monotonic transition guard of the SQL update.
func (m *memStore) MarkCaptured(ctx context.Context, paymentID string, details models.CaptureDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return store.ErrNotFound
	}
	switch p.Status {
	case models.PaymentStatusCreated, models.PaymentStatusAuthorized,
		models.PaymentStatusCaptured, models.PaymentStatusFailed:
	default:
		return nil
	}
	p.Status = models.PaymentStatusCaptured
	if details.GatewayPaymentID != "" {
		p.GatewayPaymentID = details.GatewayPaymentID
	}
	if details.Method != "" {
		p.Method = details.Method
	}
	if details.Bank != "" {
		p.Bank = details.Bank
	}
	if p.PaidAt == nil {
		paidAt := details.PaidAt
		p.PaidAt = &paidAt
	}
	return nil
}

func (m *memStore) MarkFailed(ctx context.Context, paymentID, gatewayPaymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return store.ErrNotFound
	}
	switch p.Status {
	case models.PaymentStatusCreated, models.PaymentStatusAuthorized:
	default:
		return nil
	}
	p.Status = models.PaymentStatusFailed
	p.GatewayPaymentID = gatewayPaymentID
	return nil
}

func (m *memStore) MarkRefunded(ctx context.Context, paymentID string, details models.RefundDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return store.ErrNotFound
	}
	switch p.Status {
	case models.PaymentStatusCaptured, models.PaymentStatusPartiallyRefunded:
	default:
		return nil
	}
	p.Status = models.PaymentStatusRefunded
	if details.Amount > 0 && details.Amount < p.Amount {
		p.Status = models.PaymentStatusPartiallyRefunded
	}
	p.RefundID = details.RefundID
	p.RefundAmount = details.Amount
	p.RefundReason = details.Reason
	return nil
}

func (m *memStore) ListByInstitution(ctx context.Context, institutionID string) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, p := range m.payments {
		if p.InstitutionID == institutionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

// EnrollmentRepository

func (m *memStore) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ListByUser(ctx context.Context, userID string) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// Activate mirrors the create-if-unlinked transaction: under one lock it
// checks the payment's enrollment link, creates the enrollment and sets the
// link. Exactly one concurrent caller creates.
func (m *memStore) Activate(ctx context.Context, paymentID string, enr *models.Enrollment) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activateCalls++

	p, ok := m.payments[paymentID]
	if !ok {
		return "", false, store.ErrNotFound
	}
	if p.EnrollmentID != "" {
		return p.EnrollmentID, false, nil
	}

	cp := *enr
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now().UTC()
	m.enrollments[cp.ID] = &cp
	p.EnrollmentID = cp.ID
	return cp.ID, true, nil
}

func (m *memStore) markEnrollmentRefunded(enrollmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return store.ErrNotFound
	}
	e.Status = models.EnrollmentStatusRefunded
	return nil
}

// CertificateRepository

func (m *memStore) certGetByID(certID string) (*models.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.certificates[certID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Issue mirrors the stamp-if-unset transaction against the enrollment row.
func (m *memStore) Issue(ctx context.Context, cert *models.Certificate) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.enrollments[cert.EnrollmentID]
	if !ok {
		return "", false, store.ErrNotFound
	}
	if e.CertificateID != "" {
		return e.CertificateID, false, nil
	}
	if _, exists := m.certificates[cert.ID]; exists {
		return "", false, store.ErrCertificateIDCollision
	}

	cp := *cert
	cp.IssuedAt = time.Now().UTC()
	m.certificates[cp.ID] = &cp
	e.CertificateID = cp.ID
	e.CertificateEligible = true
	e.Status = models.EnrollmentStatusCompleted
	return cp.ID, true, nil
}

// CatalogRepository

func (m *memStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UserByToken(ctx context.Context, apiToken string) (*models.User, error) {
	return nil, store.ErrNotFound
}

func (m *memStore) CourseByID(ctx context.Context, id string) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) InstitutionByID(ctx context.Context, id string) (*models.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.institutions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

// The repository interfaces overlap on method names, so the certificate and
// enrollment views get thin wrappers where needed.

type memEnrollments struct{ *memStore }

func (m memEnrollments) MarkRefunded(ctx context.Context, enrollmentID string) error {
	return m.markEnrollmentRefunded(enrollmentID)
}

type memCertificates struct{ *memStore }

func (m memCertificates) GetByID(ctx context.Context, certID string) (*models.Certificate, error) {
	return m.certGetByID(certID)
}

var (
	_ store.PaymentRepository     = (*memStore)(nil)
	_ store.EnrollmentRepository  = memEnrollments{}
	_ store.CertificateRepository = memCertificates{}
	_ store.CatalogRepository     = (*memStore)(nil)
)

// memAudit collects audit records for assertions.
type memAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

type auditEntry struct {
	action string
	fields map[string]interface{}
}

func (a *memAudit) Record(action string, fields map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, fields: fields})
}

func (a *memAudit) count(action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.action == action {
			n++
		}
	}
	return n
}

// fakeOrders is an OrderClient returning a fixed order id.
type fakeOrders struct {
	mu      sync.Mutex
	orderID string
	err     error
	calls   int
}

func (f *fakeOrders) CreateOrder(amount int64, currency, receipt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.orderID, nil
}

// fakeDocs is a document.Service that fabricates PDF bytes in memory.
type fakeDocs struct {
	mu        sync.Mutex
	copyCalls int
	lastName  string
	merged    map[string]string
}

func (f *fakeDocs) CopyTemplate(ctx context.Context, templateName, workingName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copyCalls++
	f.lastName = workingName
	return "doc:" + workingName, nil
}

func (f *fakeDocs) MergeFields(ctx context.Context, docRef string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merged = fields
	return nil
}

func (f *fakeDocs) ExportPDF(ctx context.Context, docRef string) ([]byte, error) {
	return []byte("%PDF " + docRef), nil
}

// fakeFiles is a storage.Service keeping uploads in a map.
type fakeFiles struct {
	mu      sync.Mutex
	uploads map[string][]byte
	granted map[string]bool
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{uploads: make(map[string][]byte), granted: make(map[string]bool)}
}

func (f *fakeFiles) Upload(ctx context.Context, folder, name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := folder + "/" + name
	f.uploads[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (f *fakeFiles) GrantPublicRead(ctx context.Context, fileRef string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted[fileRef] = true
	return "https://files.test/" + fileRef, nil
}

// fakeMailer reports sends on a channel so tests can wait for the
// fire-and-forget goroutine.
type fakeMailer struct {
	sent chan string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan string, 4)}
}

func (f *fakeMailer) SendCertificateIssued(to, name, certificateID, verificationURL string, pdf []byte) error {
	f.sent <- to
	return nil
}
