package services

import (
	"context"
	"sync"
	"testing"

	"learnhub/errors"
	"learnhub/models"
)

const testKeySecret = "key_secret_test"

func checkoutSig(orderID, paymentID string) string {
	return sign([]byte(orderID+"|"+paymentID), testKeySecret)
}

func newPaymentFixture(orders *fakeOrders) (*PaymentService, *memStore, *memAudit) {
	st := newMemStore()
	st.addUser(models.User{ID: "u1", Name: "Asha Rao", Email: "asha@example.com", Role: models.RoleStudent, InstitutionID: "inst1"})
	st.addCourse(models.Course{ID: "c1", Title: "Distributed Systems", InstitutionID: "inst1", Price: 99900, Currency: "INR"})
	audit := &memAudit{}
	svc := NewPaymentService(st, memEnrollments{st}, st, orders, audit, "rzp_test_key", testKeySecret)
	return svc, st, audit
}

func TestCheckoutCreatesPayment(t *testing.T) {
	t.Parallel()
	orders := &fakeOrders{orderID: "order_abc"}
	svc, st, audit := newPaymentFixture(orders)

	order, err := svc.Checkout(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if order.OrderID != "order_abc" {
		t.Errorf("order id = %q, want order_abc", order.OrderID)
	}
	if order.Amount != 99900 || order.Currency != "INR" {
		t.Errorf("order amount = %d %s, want 99900 INR", order.Amount, order.Currency)
	}
	if order.KeyID != "rzp_test_key" {
		t.Errorf("key id = %q", order.KeyID)
	}

	p, err := st.GetByOrderID(context.Background(), "order_abc")
	if err != nil {
		t.Fatalf("payment record not created: %v", err)
	}
	if p.Status != models.PaymentStatusCreated {
		t.Errorf("payment status = %q, want created", p.Status)
	}
	if p.Amount != 99900 {
		t.Errorf("payment amount = %d, want 99900", p.Amount)
	}
	if audit.count("payment.initiated") != 1 {
		t.Error("missing payment.initiated audit record")
	}
}

func TestCheckoutReusesOpenPayment(t *testing.T) {
	t.Parallel()
	orders := &fakeOrders{orderID: "order_1"}
	svc, st, _ := newPaymentFixture(orders)

	if _, err := svc.Checkout(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	// Abandoned attempt, user checks out again.
	orders.mu.Lock()
	orders.orderID = "order_2"
	orders.mu.Unlock()

	order, err := svc.Checkout(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("second checkout: %v", err)
	}
	if order.OrderID != "order_2" {
		t.Errorf("order id = %q, want order_2", order.OrderID)
	}

	st.mu.Lock()
	n := len(st.payments)
	st.mu.Unlock()
	if n != 1 {
		t.Errorf("payment count = %d, want 1 reused record", n)
	}

	p, err := st.GetByOrderID(context.Background(), "order_2")
	if err != nil {
		t.Fatalf("reused payment not pointed at new order: %v", err)
	}
	if p.Status != models.PaymentStatusCreated {
		t.Errorf("payment status = %q, want created", p.Status)
	}
}

func TestCheckoutValidation(t *testing.T) {
	t.Parallel()
	svc, st, _ := newPaymentFixture(&fakeOrders{orderID: "order_x"})
	st.addCourse(models.Course{ID: "free", Title: "Intro", InstitutionID: "inst1", Price: 0, Currency: "INR"})

	cases := []struct {
		name     string
		userID   string
		courseID string
		kind     errors.Kind
	}{
		{"unknown user", "nobody", "c1", errors.NotFound},
		{"unknown course", "u1", "missing", errors.NotFound},
		{"free course", "u1", "free", errors.Invalid},
	}
	for _, tc := range cases {
		_, err := svc.Checkout(context.Background(), tc.userID, tc.courseID)
		if errors.KindOf(err) != tc.kind {
			t.Errorf("%s: err = %v, want kind %v", tc.name, err, tc.kind)
		}
	}
}

func TestVerifyActivatesEnrollment(t *testing.T) {
	t.Parallel()
	svc, st, audit := newPaymentFixture(&fakeOrders{orderID: "order_v"})

	if _, err := svc.Checkout(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	result, err := svc.Verify(context.Background(), "order_v", "pay_v", checkoutSig("order_v", "pay_v"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Status != models.PaymentStatusCaptured {
		t.Errorf("result status = %q, want captured", result.Status)
	}
	if result.EnrollmentID == "" {
		t.Fatal("no enrollment id in result")
	}

	enr := st.enrollment(result.EnrollmentID)
	if enr.Status != models.EnrollmentStatusActive {
		t.Errorf("enrollment status = %q, want active", enr.Status)
	}

	// A retried verify settles on the same enrollment.
	again, err := svc.Verify(context.Background(), "order_v", "pay_v", checkoutSig("order_v", "pay_v"))
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if again.EnrollmentID != result.EnrollmentID {
		t.Errorf("retry enrolled %q, first was %q", again.EnrollmentID, result.EnrollmentID)
	}
	if st.enrollmentCount() != 1 {
		t.Errorf("enrollment count = %d, want 1", st.enrollmentCount())
	}
	if audit.count("enrollment.activated") != 1 {
		t.Error("enrollment.activated should be recorded once")
	}
}

// A failed first attempt followed by a successful client-side verify on the
// same order must end captured, same as the webhook ordering.
func TestVerifyAfterFailedRecovers(t *testing.T) {
	t.Parallel()
	svc, st, _ := newPaymentFixture(&fakeOrders{orderID: "order_f"})

	if _, err := svc.Checkout(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	p, err := st.GetByOrderID(context.Background(), "order_f")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.MarkFailed(context.Background(), p.ID, "pay_attempt1"); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Verify(context.Background(), "order_f", "pay_attempt2", checkoutSig("order_f", "pay_attempt2"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.EnrollmentID == "" {
		t.Fatal("no enrollment id in result")
	}

	got := st.payment(p.ID)
	if got.Status != models.PaymentStatusCaptured {
		t.Errorf("payment status = %q, want captured after recovery", got.Status)
	}
	if got.GatewayPaymentID != "pay_attempt2" {
		t.Errorf("gateway payment id = %q, want pay_attempt2", got.GatewayPaymentID)
	}
}

func TestVerifyBadSignature(t *testing.T) {
	t.Parallel()
	svc, st, _ := newPaymentFixture(&fakeOrders{orderID: "order_b"})

	if _, err := svc.Checkout(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	_, err := svc.Verify(context.Background(), "order_b", "pay_b", "not-a-signature")
	if errors.KindOf(err) != errors.Unauthorized {
		t.Fatalf("err = %v, want Unauthorized", err)
	}
	if st.enrollmentCount() != 0 {
		t.Error("bad signature created an enrollment")
	}
}

func TestVerifyUnknownOrder(t *testing.T) {
	t.Parallel()
	svc, _, _ := newPaymentFixture(&fakeOrders{orderID: "order_u"})

	_, err := svc.Verify(context.Background(), "order_ghost", "pay_g", checkoutSig("order_ghost", "pay_g"))
	if errors.KindOf(err) != errors.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

// The synchronous verify path and the gateway webhook race for the same
// payment; the activation guard must collapse them into one enrollment.
func TestVerifyRacesWebhook(t *testing.T) {
	t.Parallel()
	orders := &fakeOrders{orderID: "order_race2"}
	svc, st, _ := newPaymentFixture(orders)
	webhooks := NewWebhookService(st, memEnrollments{st}, &memAudit{}, testWebhookSecret)

	if _, err := svc.Checkout(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	body := capturedBody("order_race2", "pay_race2", 99900)
	var wg sync.WaitGroup
	wg.Add(2)
	var verifyID, webhookID string
	go func() {
		defer wg.Done()
		r, err := svc.Verify(context.Background(), "order_race2", "pay_race2", checkoutSig("order_race2", "pay_race2"))
		if err != nil {
			t.Errorf("Verify: %v", err)
			return
		}
		verifyID = r.EnrollmentID
	}()
	go func() {
		defer wg.Done()
		ack, err := webhooks.HandleEvent(context.Background(), body, sign(body, testWebhookSecret))
		if err != nil {
			t.Errorf("HandleEvent: %v", err)
			return
		}
		webhookID = ack.EnrollmentID
	}()
	wg.Wait()

	if st.enrollmentCount() != 1 {
		t.Fatalf("enrollment count = %d, want exactly 1", st.enrollmentCount())
	}
	if verifyID != webhookID {
		t.Errorf("paths disagree on enrollment: verify=%q webhook=%q", verifyID, webhookID)
	}
}
