// Package qrcode renders payment URLs as PNG data URIs for the donation page.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

// ErrEmptyContent is returned when there is nothing to encode.
var ErrEmptyContent = errors.New("missing url")

const defaultSize = 256

// DataURL encodes content as a PNG QR code wrapped in a data: URI.
func DataURL(content string) (string, error) {
	if content == "" {
		return "", ErrEmptyContent
	}
	png, err := qr.Encode(content, qr.Medium, defaultSize)
	if err != nil {
		return "", fmt.Errorf("encoding qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
