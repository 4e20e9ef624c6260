package access

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet avoids 0/O, 1/I and L so codes survive being read aloud
// or transcribed from a screen.
const codeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

// codeLength of 8 over a 30-character alphabet gives ~39 bits of
// entropy, comfortably past the point where online guessing pays off.
const codeLength = 8

// newCode draws a fixed-length code from a cryptographically secure
// random source.
func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
