package models

import "time"

// Payment statuses. Transitions are monotonic: created -> authorized ->
// captured -> refunded/partially_refunded, with failed terminal from
// created or authorized.
const (
	PaymentStatusCreated           = "created"
	PaymentStatusAuthorized        = "authorized"
	PaymentStatusCaptured          = "captured"
	PaymentStatusFailed            = "failed"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

// Payment is one gateway checkout attempt. Amounts are integers in the
// smallest currency unit (paise for INR); float arithmetic is not used
// anywhere in the payment path.
type Payment struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	CourseID         string     `json:"course_id"`
	InstitutionID    string     `json:"institution_id"`
	GatewayOrderID   string     `json:"gateway_order_id"`
	GatewayPaymentID string     `json:"gateway_payment_id,omitempty"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	Method           string     `json:"method,omitempty"`
	Bank             string     `json:"bank,omitempty"`
	RefundID         string     `json:"refund_id,omitempty"`
	RefundAmount     int64      `json:"refund_amount,omitempty"`
	RefundReason     string     `json:"refund_reason,omitempty"`
	// EnrollmentID is set at most once, by the enrollment activator, and
	// never cleared.
	EnrollmentID string     `json:"enrollment_id,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PaymentEvent is one raw webhook delivery retained verbatim for forensic
// replay. The list is append-only.
type PaymentEvent struct {
	ID         string    `json:"id"`
	PaymentID  string    `json:"payment_id"`
	Event      string    `json:"event"`
	RawBody    []byte    `json:"raw_body"`
	ReceivedAt time.Time `json:"received_at"`
}

// CaptureDetails carries the gateway fields recorded when a payment is
// captured.
type CaptureDetails struct {
	GatewayPaymentID string
	Method           string
	Bank             string
	PaidAt           time.Time
}

// RefundDetails carries the gateway fields recorded when a refund is created.
type RefundDetails struct {
	RefundID string
	Amount   int64
	Reason   string
}

// CheckoutOrder is the response body returned to the client after a
// gateway order has been opened.
type CheckoutOrder struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	KeyID    string `json:"key_id"`
}
