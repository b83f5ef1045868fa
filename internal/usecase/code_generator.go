package usecase

import (
	"crypto/rand"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// codeAlphabet avoids ambiguous characters like O/0 and I/1.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var codeShape = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// generateVerificationCode creates a random, human-readable code.
// Format: XXXX-XXXX-XXXX
func generateVerificationCode() (string, error) {
	const codeLength = 12

	buffer := make([]byte, codeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}
	// 256 is a multiple of 32, so the modulo keeps the distribution uniform.
	for i := 0; i < codeLength; i++ {
		buffer[i] = codeAlphabet[int(buffer[i])%len(codeAlphabet)]
	}
	return formatCode(string(buffer)), nil
}

// fallbackCode is used once random generation keeps colliding.
func fallbackCode() string {
	h := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return formatCode(h[:12])
}

func formatCode(s string) string {
	return s[0:4] + "-" + s[4:8] + "-" + s[8:12]
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
