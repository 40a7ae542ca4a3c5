package services

import "testing"

func TestVerifyWebhookSignature(t *testing.T) {
	t.Parallel()
	body := []byte(`{"event":"payment.captured","payload":{}}`)
	secret := "whsec_abc"
	good := sign(body, secret)

	cases := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		{"valid", body, good, secret, true},
		{"wrong secret", body, good, "whsec_other", false},
		{"tampered body", []byte(`{"event":"payment.captured","payload":{ }}`), good, secret, false},
		{"empty signature", body, "", secret, false},
		{"empty secret", body, good, "", false},
		{"garbage signature", body, "zzzz", secret, false},
	}
	for _, tc := range cases {
		if got := VerifyWebhookSignature(tc.body, tc.signature, tc.secret); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestVerifyCheckoutSignature(t *testing.T) {
	t.Parallel()
	secret := "key_secret"
	good := sign([]byte("order_1|pay_1"), secret)

	cases := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", "order_1", "pay_1", good, true},
		{"other order", "order_2", "pay_1", good, false},
		{"other payment", "order_1", "pay_2", good, false},
		{"empty signature", "order_1", "pay_1", "", false},
	}
	for _, tc := range cases {
		if got := VerifyCheckoutSignature(tc.orderID, tc.paymentID, tc.signature, secret); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
