package filecheck

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/logger"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = "utf-8"

// Decode converts data to a string. It tries the named encoding, then
// UTF-8, then ISO-8859-1, and returns the name of the one that worked.
func Decode(data []byte, name string) (string, string, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultEncoding
	}

	if s, ok := decodeNamed(data, name); ok {
		return s, strings.ToLower(name), nil
	}
	logger.Warn("text is not valid %s, retrying as utf-8", name)

	if utf8.Valid(data) {
		return string(data), DefaultEncoding, nil
	}
	logger.Warn("text is not valid utf-8, retrying as iso-8859-1")

	s, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: undecodable text: %w", domain.ErrCorrupted, err)
	}
	return string(s), "iso-8859-1", nil
}

func decodeNamed(data []byte, name string) (string, bool) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		logger.Warn("unknown encoding %q", name)
		return "", false
	}
	if enc == encoding.Nop || isUTF8(name) {
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	// x/text substitutes U+FFFD for invalid input instead of failing.
	if bytes.Contains(out, replacement) && !bytes.Contains(data, replacement) {
		return "", false
	}
	return string(out), true
}

var replacement = []byte(string(utf8.RuneError))

func isUTF8(name string) bool {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
