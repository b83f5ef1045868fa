package security

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SignatureField is the body key that may carry a webhook signature. It is
// never part of the signed bytes.
const SignatureField = "signature"

// CanonicalJSON serializes payload with sorted keys and no insignificant
// whitespace, dropping the signature field. encoding/json sorts map keys at
// every nesting level. HTML characters stay literal so the bytes match what
// non-Go signers produce.
func CanonicalJSON(payload map[string]any) ([]byte, error) {
	clean := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == SignatureField {
			continue
		}
		clean[k] = v
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(clean); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Sign returns the lowercase hex HMAC-SHA256 of the canonical payload.
func Sign(secret string, payload map[string]any) (string, error) {
	msg, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return signBytes(secret, msg), nil
}

func signBytes(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected HMAC in constant time.
func Verify(secret string, payload map[string]any, signature string) bool {
	if signature == "" {
		return false
	}
	expected, err := Sign(secret, payload)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
