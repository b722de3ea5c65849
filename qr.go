package authkeep

import (
	"bytes"
	"encoding/base64"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// QREncoder renders a provisioning URI as an image data URI. Encoding
// failures are non-fatal: setup falls back to manual secret entry.
type QREncoder interface {
	Encode(uri string, size int) (string, error)
}

type pngQREncoder struct{}

// NewPNGQREncoder returns the default encoder, producing
// data:image/png;base64 URIs.
func NewPNGQREncoder() QREncoder { return pngQREncoder{} }

func (pngQREncoder) Encode(uri string, size int) (string, error) {
	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
