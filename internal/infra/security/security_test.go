//go:build !integration

package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionService_RoundTrip(t *testing.T) {
	svc, err := NewEncryptionService("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	ct, err := svc.Encrypt("+2250700000000")
	require.NoError(t, err)
	assert.NotContains(t, ct, "0700000000")

	ct2, err := svc.Encrypt("+2250700000000")
	require.NoError(t, err)
	assert.NotEqual(t, ct, ct2, "nonce must differ per message")

	pt, err := svc.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "+2250700000000", pt)

	_, err = svc.Decrypt("not-base64!")
	assert.Error(t, err)
}

func TestEncryptionService_KeyLength(t *testing.T) {
	_, err := NewEncryptionService("short")
	assert.Error(t, err)
}

func TestCanonicalJSON_SortedCompactWithoutSignature(t *testing.T) {
	payload := map[string]any{
		"status":         "SUCCESS",
		"amount":         5000,
		"transaction_id": "ORD42_1717000000",
		"signature":      "abc",
		"data":           map[string]any{"z": 1, "a": 2},
	}
	b, err := CanonicalJSON(payload)
	require.NoError(t, err)
	assert.Equal(t, `{"amount":5000,"data":{"a":2,"z":1},"status":"SUCCESS","transaction_id":"ORD42_1717000000"}`, string(b))
	_, stillThere := payload["signature"]
	assert.True(t, stillThere, "input must not be mutated")
}

func TestVerify(t *testing.T) {
	const secret = "whsec"
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"transaction_id":"ORD42_1","status":"SUCCESS","amount":5000}`), &payload))

	sig, err := Sign(secret, payload)
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	assert.True(t, Verify(secret, payload, sig))
	assert.True(t, Verify(secret, payload, strings.ToUpper(sig)), "hex comparison is case-insensitive")
	assert.False(t, Verify("other", payload, sig))
	assert.False(t, Verify(secret, payload, ""))

	payload["status"] = "FAILED"
	assert.False(t, Verify(secret, payload, sig), "tampered payload must not verify")

	payload["status"] = "SUCCESS"
	payload["signature"] = sig
	assert.True(t, Verify(secret, payload, sig), "embedded signature is excluded from the signed bytes")
}

func TestCanonicalJSON_KeepsHTMLCharactersLiteral(t *testing.T) {
	payload := map[string]any{"description": "Pagne & co <XL>", "amount": 5000}
	b, err := CanonicalJSON(payload)
	require.NoError(t, err)
	assert.Equal(t, `{"amount":5000,"description":"Pagne & co <XL>"}`, string(b))

	// A provider signing the same compact JSON without escaping must verify.
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write([]byte(`{"amount":5000,"description":"Pagne & co <XL>"}`))
	assert.True(t, Verify("whsec", payload, hex.EncodeToString(mac.Sum(nil))))
}
