package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifySignature checks the x-line-signature header against the raw request
// body: HMAC-SHA256 over the exact bytes received, base64 encoded, compared
// in constant time. It must be given the body as read off the wire —
// re-serializing a decoded payload can change the byte content.
func VerifySignature(channelSecret string, body []byte, signature string) bool {
	if channelSecret == "" || len(body) == 0 || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
