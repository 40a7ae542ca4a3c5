package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhookSignature checks the gateway's hex-encoded HMAC-SHA256
// signature against the exact raw request body. The body must be the bytes
// as received, before any JSON parsing; hashing a re-serialized body breaks
// on whitespace and key-order differences. A missing secret or signature
// rejects.
func VerifyWebhookSignature(rawBody []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(rawBody)
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyCheckoutSignature checks the signature the gateway hands the client
// after checkout, computed over "orderID|paymentID" with the key secret.
// This backs the synchronous verify path.
func VerifyCheckoutSignature(orderID, gatewayPaymentID, signature, keySecret string) bool {
	if keySecret == "" || signature == "" {
		return false
	}

	h := hmac.New(sha256.New, []byte(keySecret))
	h.Write([]byte(orderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
