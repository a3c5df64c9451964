package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DataURLPrefix is the prefix browsers and the direct store path put in
// front of base64 PDF payloads.
const DataURLPrefix = "data:application/pdf;base64,"

const defaultFilename = "audit_report.pdf"

var ErrNotPDF = errors.New("decoded data is not a PDF")

// DecodePDF decodes a base64 PDF, with or without a data URL prefix, and
// checks the %PDF magic.
func DecodePDF(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		i := strings.Index(data, ";base64,")
		if i < 0 {
			return nil, fmt.Errorf("data url is not base64")
		}
		data = data[i+len(";base64,"):]
	}
	data = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, data)
	if data == "" {
		return nil, fmt.Errorf("empty pdf data")
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	}
	if err := CheckPDF(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func CheckPDF(raw []byte) error {
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		return ErrNotPDF
	}
	return nil
}

// StorageKey is "<unix-ms>-<filename>" with every character outside
// [A-Za-z0-9.-] replaced by an underscore.
func StorageKey(now time.Time, filename string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), SanitizeFilename(filename))
}

func SanitizeFilename(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultFilename
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, v)
}
