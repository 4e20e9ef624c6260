package access

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Encoder renders an access code as PNG image bytes. It is a pure
// string-in, bytes-out collaborator; the service wraps the result in a
// data URI.
type Encoder interface {
	EncodePNG(code string) ([]byte, error)
}

// QRPNG encodes codes as QR images.
type QRPNG struct {
	// Size is the square image edge in pixels; zero means 256.
	Size int
}

var _ Encoder = QRPNG{}

func (q QRPNG) EncodePNG(code string) ([]byte, error) {
	size := q.Size
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}

func dataURI(png []byte) string {
	return fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(png))
}
