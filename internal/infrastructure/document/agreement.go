package document

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/tffhost/backend/internal/domain/integration"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const hostingAgreementTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Hosting agreement {{.OrderReference}}</title>
<style>
body { font-family: "DejaVu Sans", sans-serif; font-size: 11pt; line-height: 1.5; }
h1 { font-size: 18pt; text-align: center; }
table.parties td { padding: 4px 12px 4px 0; vertical-align: top; }
.signature { margin-top: 48px; }
</style>
</head>
<body>
<h1>Node Hosting Agreement</h1>
<p>Reference: <strong>{{.OrderReference}}</strong><br>Date: {{formatDate .Date}}</p>
<table class="parties">
<tr><td>Hoster</td><td>{{title .Name}}</td></tr>
<tr><td>Address</td><td>{{lines .Address}}</td></tr>
{{- if .Email}}
<tr><td>Email</td><td>{{.Email}}</td></tr>
{{- end}}
<tr><td>Power socket</td><td>{{.Socket}}</td></tr>
</table>
<h2>1. Subject</h2>
<p>The hoster receives a ThreeFold node and keeps it connected to power and to the
internet at the address above, so that the node can offer capacity to the ThreeFold grid.</p>
<h2>2. Obligations of the hoster</h2>
<p>The hoster connects the node within 14 days after delivery and keeps it running.
The hoster informs ThreeFold when the node is moved, disconnected or damaged.</p>
<h2>3. Ownership</h2>
<p>The node remains the property of its owner. The hoster does not open, modify or sell
the node.</p>
<h2>4. Term</h2>
<p>The agreement starts when it is signed in the ThreeFold app and ends when either party
cancels it through the app.</p>
<p class="signature">Signed electronically by {{title .Name}} in the ThreeFold app.</p>
</body>
</html>
`

// AgreementRenderer implements integration.AgreementRenderer with html/template
// documents printed by a PDFRenderer
type AgreementRenderer struct {
	pdf     PDFRenderer
	hosting *template.Template
}

// NewAgreementRenderer parses the agreement templates
func NewAgreementRenderer(pdf PDFRenderer) (*AgreementRenderer, error) {
	funcs := template.FuncMap{
		// a Caser is stateful, so each call gets its own
		"title": func(s string) string { return cases.Title(language.English).String(strings.TrimSpace(s)) },
		"formatDate": func(t time.Time) string {
			return t.Format("02 January 2006")
		},
		"lines": func(s string) template.HTML {
			parts := strings.Split(strings.TrimSpace(s), "\n")
			for i, p := range parts {
				parts[i] = template.HTMLEscapeString(strings.TrimSpace(p))
			}
			return template.HTML(strings.Join(parts, "<br>"))
		},
	}
	tmpl, err := template.New("hosting").Funcs(funcs).Parse(hostingAgreementTemplate)
	if err != nil {
		return nil, NewRenderError(ErrCodeTemplate, "parse hosting agreement", err)
	}
	return &AgreementRenderer{pdf: pdf, hosting: tmpl}, nil
}

// RenderHostingAgreement renders the agreement an approved hoster signs
func (r *AgreementRenderer) RenderHostingAgreement(ctx context.Context, data integration.HostingAgreement) ([]byte, error) {
	html, err := r.HostingAgreementHTML(data)
	if err != nil {
		return nil, err
	}
	return r.pdf.RenderPDF(ctx, html)
}

// HostingAgreementHTML renders the agreement document without printing it
func (r *AgreementRenderer) HostingAgreementHTML(data integration.HostingAgreement) (string, error) {
	if data.Date.IsZero() {
		data.Date = time.Now()
	}
	var buf bytes.Buffer
	if err := r.hosting.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeTemplate, "render hosting agreement", err)
	}
	return buf.String(), nil
}

var _ integration.AgreementRenderer = (*AgreementRenderer)(nil)
