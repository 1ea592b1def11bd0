package shared

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	key, err := DocumentKey("node-orders", "42", secret)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "node-orders/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.Len(t, key, len("node-orders/")+64+len(".pdf"))

	again, err := DocumentKey("node-orders", "42", secret)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	other, err := DocumentKey("node-orders", "43", secret)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	otherSecret, err := DocumentKey("node-orders", "42", []byte("another-secret"))
	require.NoError(t, err)
	assert.NotEqual(t, key, otherSecret)
}

func TestDocumentKey_SecretTooLong(t *testing.T) {
	_, err := DocumentKey("x", "1", make([]byte, 65))
	assert.Error(t, err)
}

func TestDomainError_WithDetails(t *testing.T) {
	base := NewDomainError("CANNOT_CHANGE_STATUS", "Cannot change status")
	err := base.WithDetails(map[string]any{"from": 1})

	assert.ErrorIs(t, err, base)
	assert.Equal(t, 1, err.Details["from"])
	assert.Nil(t, base.Details)
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 41, 2, 20)
	assert.Equal(t, 3, p.TotalPages)

	empty := NewPaginated([]int{}, 0, 1, 0)
	assert.Zero(t, empty.TotalPages)
}

func TestFilter_Offset(t *testing.T) {
	f := DefaultFilter()
	assert.Zero(t, f.Offset())
	f.Page = 3
	assert.Equal(t, 100, f.Offset())
}

func TestDecodePDFDataURL(t *testing.T) {
	content, err := DecodePDFDataURL("data:application/pdf;base64,JVBERi0xLjQ=")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))

	_, err = DecodePDFDataURL("data:image/png;base64,iVBORw0KGgo=")
	assert.ErrorIs(t, err, ErrInvalidContentType)

	_, err = DecodePDFDataURL("data:application/pdf;base64,!!!")
	assert.ErrorIs(t, err, ErrInvalidContentType)
}
