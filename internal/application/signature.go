package application

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// SignatureHeader is the request header carrying the webhook HMAC.
const SignatureHeader = "X-Hub-Signature-256"

const signatureAlgorithm = "sha256"

// SignatureVerifier authenticates webhook bodies against a shared secret.
// It holds no state beyond the secret and is safe for concurrent use.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier creates a verifier for secret. An empty secret would
// accept any body signed with the empty key, so it is rejected.
func NewSignatureVerifier(secret string) (*SignatureVerifier, error) {
	if secret == "" {
		return nil, errors.New("webhook secret must not be empty")
	}
	return &SignatureVerifier{secret: []byte(secret)}, nil
}

// Verify checks header, of the form "sha256=<hexdigest>", against the
// HMAC-SHA256 of body. The header must hold exactly one "=" and a hex digest.
// Errors wrap model.ErrMalformedSignature, model.ErrUnsupportedAlgorithm or
// model.ErrSignatureMismatch and carry model.KindAuth.
func (v *SignatureVerifier) Verify(body []byte, header string) error {
	parts := strings.Split(strings.TrimSpace(header), "=")
	if len(parts) != 2 || parts[0] == "" || !isHex(parts[1]) {
		return model.NewError(model.KindAuth, "verify signature", model.ErrMalformedSignature)
	}
	algorithm, digest := parts[0], parts[1]
	if algorithm != signatureAlgorithm {
		return model.NewError(model.KindAuth, "verify signature", model.ErrUnsupportedAlgorithm)
	}

	if !hmac.Equal([]byte(v.Sign(body)), []byte(digest)) {
		return model.NewError(model.KindAuth, "verify signature", model.ErrSignatureMismatch)
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body.
func (v *SignatureVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeaderValue returns the full header value for body, as a sender would set it.
func (v *SignatureVerifier) SignatureHeaderValue(body []byte) string {
	return signatureAlgorithm + "=" + v.Sign(body)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
