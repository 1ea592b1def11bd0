package shared

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DocumentKey returns the storage key of a document such as a signed agreement.
// The file name is a keyed hash of the owning id so document URLs cannot be guessed
// from sequential ids.
func DocumentKey(prefix, id string, secret []byte) (string, error) {
	h, err := blake2b.New256(secret)
	if err != nil {
		return "", fmt.Errorf("document key: %w", err)
	}
	h.Write([]byte(id))
	return fmt.Sprintf("%s/%s.pdf", prefix, hex.EncodeToString(h.Sum(nil))), nil
}

const pdfDataURLPrefix = "data:application/pdf;base64,"

// ErrInvalidContentType is returned for uploaded documents that are not PDF data URLs
var ErrInvalidContentType = NewDomainError("INVALID_CONTENT_TYPE", "The document must be a PDF")

// DecodePDFDataURL decodes a data:application/pdf;base64 URL
func DecodePDFDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, pdfDataURLPrefix) {
		return nil, ErrInvalidContentType
	}
	content, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, pdfDataURLPrefix))
	if err != nil || len(content) == 0 {
		return nil, ErrInvalidContentType.WithDetails(map[string]any{"reason": "invalid base64 content"})
	}
	return content, nil
}
