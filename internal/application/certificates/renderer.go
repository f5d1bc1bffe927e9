package certificates

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Document is everything printed on a certificate.
type Document struct {
	CertificateID      string
	CompanyName        string
	RegistrationNumber string
	Industry           string
	Score              string
	Category           string
	IssueDate          time.Time
	ValidUntil         time.Time
	VerificationURL    string
	Signature          string
}

// Renderer turns a Document into a downloadable artifact.
type Renderer interface {
	Render(ctx context.Context, doc Document) (data []byte, contentType string, err error)
	Extension() string
}

const certificateMarkdown = `# Carbon Score Certificate

**{{.CompanyName}}**

| | |
|---|---|
| Certificate ID | {{.CertificateID}} |
| Registration number | {{.RegistrationNumber}} |
| Industry | {{.Industry}} |
| Carbon score | **{{.Score}}** / 100 |
| Category | {{.Category}} |
| Issued | {{.IssueDate.Format "02 January 2006"}} |
| Valid until | {{.ValidUntil.Format "02 January 2006"}} |

Verify this certificate at <{{.VerificationURL}}>.

---

Signature: ` + "`{{.Signature}}`" + `
`

const htmlShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body{font-family:Georgia,serif;max-width:720px;margin:48px auto;color:#1b3a2b}
h1{border-bottom:3px solid #2e7d32;padding-bottom:8px}
table{border-collapse:collapse;width:100%%}
td{padding:6px 10px;border-bottom:1px solid #dfe8df}
code{font-size:11px;word-break:break-all}
</style>
</head>
<body>
%s
</body>
</html>
`

// HTMLRenderer renders the certificate template from Markdown to a standalone HTML page.
type HTMLRenderer struct {
	md   goldmark.Markdown
	tmpl *template.Template
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		tmpl: template.Must(template.New("certificate").Parse(certificateMarkdown)),
	}
}

func (r *HTMLRenderer) Extension() string { return ".html" }

func (r *HTMLRenderer) Render(_ context.Context, doc Document) ([]byte, string, error) {
	escaped := doc
	// text/template does not escape; the Markdown source must not carry raw HTML from user fields.
	escaped.CompanyName = cell(doc.CompanyName)
	escaped.RegistrationNumber = cell(doc.RegistrationNumber)
	escaped.Industry = cell(doc.Industry)

	var src bytes.Buffer
	if err := r.tmpl.Execute(&src, escaped); err != nil {
		return nil, "", fmt.Errorf("render certificate template: %w", err)
	}
	var body bytes.Buffer
	if err := r.md.Convert(src.Bytes(), &body); err != nil {
		return nil, "", fmt.Errorf("render certificate markdown: %w", err)
	}
	out := fmt.Sprintf(htmlShell, html.EscapeString(doc.CertificateID), body.String())
	return []byte(out), "text/html; charset=utf-8", nil
}

func cell(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "|", "\\|")
}
