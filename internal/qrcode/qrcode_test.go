package qrcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestDataURL(t *testing.T) {
	url, err := DataURL("https://rzp.io/i/abc")
	if err != nil {
		t.Fatal(err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("url = %.40s...", url)
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("payload is not a PNG")
	}
}

func TestDataURL_Empty(t *testing.T) {
	if _, err := DataURL(""); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("err = %v", err)
	}
}
