package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentSignature is the hex HMAC-SHA256 the gateway attaches to a checkout
// callback: keyed with the API secret over "<orderID>|<paymentID>".
func PaymentSignature(secret, orderID, paymentID string) string {
	return hmacHex(secret, []byte(orderID+"|"+paymentID))
}

func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	expected := PaymentSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookSignature is computed over the raw webhook body with the webhook secret.
func WebhookSignature(secret string, body []byte) string {
	return hmacHex(secret, body)
}

func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return false
	}
	expected := WebhookSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func hmacHex(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}
