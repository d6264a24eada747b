package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
)

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under secret.
func Sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureVerifier checks checkout confirmations against the gateway secret.
type SignatureVerifier struct {
	secret string
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) error {
	return VerifySignature(orderID, paymentID, signature, v.secret)
}

// VerifySignature compares in constant time. A malformed signature fails the
// same way as a wrong one.
func VerifySignature(orderID, paymentID, signature, secret string) error {
	fail := func(err error) error {
		return &application.SignatureVerificationError{OrderID: orderID, PaymentID: paymentID, Err: err}
	}
	if secret == "" {
		return fail(errors.New("secret is not configured"))
	}
	if orderID == "" || paymentID == "" || signature == "" {
		return fail(application.ErrSignatureMismatch)
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return fail(application.ErrSignatureMismatch)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return fail(application.ErrSignatureMismatch)
	}
	return nil
}
