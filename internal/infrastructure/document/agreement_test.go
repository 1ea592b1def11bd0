package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tffhost/backend/internal/domain/integration"
)

type capturePDF struct {
	html string
	err  error
}

func (c *capturePDF) RenderPDF(_ context.Context, html string) ([]byte, error) {
	c.html = html
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF-1.7"), nil
}

func testAgreement() integration.HostingAgreement {
	return integration.HostingAgreement{
		OrderReference: "1000.0000.0000.0042",
		Name:           "jane doe",
		Address:        "Main street 1\n9000 Gent <Belgium>",
		Email:          "jane@example.com",
		Socket:         "EU",
		Date:           time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestAgreementRenderer_RenderHostingAgreement(t *testing.T) {
	pdf := &capturePDF{}
	r, err := NewAgreementRenderer(pdf)
	require.NoError(t, err)

	out, err := r.RenderHostingAgreement(context.Background(), testAgreement())
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), out)

	assert.Contains(t, pdf.html, "1000.0000.0000.0042")
	assert.Contains(t, pdf.html, "Jane Doe")
	assert.Contains(t, pdf.html, "01 March 2026")
	assert.Contains(t, pdf.html, "Main street 1<br>9000 Gent &lt;Belgium&gt;")
	assert.Contains(t, pdf.html, "jane@example.com")
}

func TestAgreementRenderer_OmitsEmptyEmail(t *testing.T) {
	r, err := NewAgreementRenderer(&capturePDF{})
	require.NoError(t, err)

	data := testAgreement()
	data.Email = ""
	html, err := r.HostingAgreementHTML(data)
	require.NoError(t, err)
	assert.NotContains(t, html, "<td>Email</td>")
}

func TestAgreementRenderer_PropagatesPDFError(t *testing.T) {
	cause := NewRenderError(ErrCodeRenderTimeout, "timed out", nil)
	r, err := NewAgreementRenderer(&capturePDF{err: cause})
	require.NoError(t, err)

	_, err = r.RenderHostingAgreement(context.Background(), testAgreement())
	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, ErrCodeRenderTimeout, renderErr.Code)
}

func TestChromedpRenderer_RejectsEmptyHTML(t *testing.T) {
	r, err := NewChromedpRenderer(ChromedpConfig{RemoteURL: "ws://127.0.0.1:9222"})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.RenderPDF(context.Background(), "  ")
	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)
}

func TestNewChromedpRenderer_InvalidRemoteURL(t *testing.T) {
	_, err := NewChromedpRenderer(ChromedpConfig{RemoteURL: "chrome:9222"})
	assert.Error(t, err)
}

func TestRenderError(t *testing.T) {
	cause := errors.New("boom")
	err := NewRenderError(ErrCodeRenderFailed, "render", cause)
	assert.Equal(t, "render: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "render", NewRenderError(ErrCodeRenderFailed, "render", nil).Error())
}
