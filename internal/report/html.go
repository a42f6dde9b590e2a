package report

import (
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// Section is one block of the HTML summary: a status badge, an optional
// note and a row of images.
type Section struct {
	Title  string
	Status string
	Class  string
	Note   string
	Images []string
}

// Page is the full summary document.
type Page struct {
	Title     string
	Generated string
	Sections  []Section
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
h1 { border-bottom: 1px solid #ccc; }
.section { margin-bottom: 2em; }
.badge { padding: 2px 8px; border-radius: 4px; color: #fff; font-size: 0.8em; }
.badge.ok { background: #2a2; }
.badge.ko { background: #c22; }
.badge.unknown { background: #888; }
.badge.missing { background: #e90; }
img { max-width: 480px; border: 1px solid #ddd; margin: 4px; }
.note { color: #555; font-size: 0.9em; }
.footer { color: #999; font-size: 0.8em; margin-top: 3em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Sections}}
<div class="section">
<h2>{{.Title}} <span class="badge {{.Class}}">{{.Status}}</span></h2>
{{if .Note}}<p class="note">{{.Note}}</p>{{end}}
{{range .Images}}<a href="{{.}}"><img src="{{.}}"></a>{{end}}
</div>
{{end}}
<div class="footer">generated {{.Generated}}</div>
</body>
</html>
`))

// WriteIndex renders the summary page at path.
func WriteIndex(path string, page Page) error {
	if page.Generated == "" {
		page.Generated = time.Now().UTC().Format(time.RFC3339)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "report: mkdir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "report: create index")
	}
	if err := indexTmpl.Execute(f, page); err != nil {
		f.Close()
		return errors.Wrapf(err, "report: render %s", path)
	}
	return errors.Wrap(f.Close(), "report: close index")
}
