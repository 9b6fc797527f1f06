package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var minutesTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/minutes.html")
	if err != nil {
		// Fallback to built-in template if file not found
		minutesTemplate = template.Must(template.New("minutes").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	minutesTemplate = template.Must(template.New("minutes").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for minutes template rendering
type TemplateData struct {
	SessionName string
	Chair       string
	Topic       string
	ClosedAt    time.Time
	Motions     []TemplateMotion
	Caucuses    []TemplateCaucus
	Resolutions []TemplateResolution
}

// TemplateMotion holds one entertained motion for the template
type TemplateMotion struct {
	Type     string
	Proposal string
	Proposer string
	Seconder string
	Duration string
}

// TemplateCaucus groups the speeches held under one caucus
type TemplateCaucus struct {
	Name     string
	Speeches []TemplateSpeech
}

// TemplateSpeech holds one delivered speech for the template
type TemplateSpeech struct {
	Who      string
	Stance   string
	Duration string
}

// TemplateResolution holds one draft resolution for the template
type TemplateResolution struct {
	Name     string
	Proposer string
	Seconder string
	Status   string
}

// RenderMinutesHTML renders the minutes template with provided data
func RenderMinutesHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := minutesTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.SessionName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
    th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
  </style>
</head>
<body>
  <h1>{{.SessionName}}</h1>
  <div class="meta">Chair: {{.Chair}}{{if .Topic}} | Topic: {{.Topic}}{{end}} | Closed {{formatDate .ClosedAt "Jan 2, 2006 15:04"}}</div>
  {{if .Motions}}
  <h2>Motions</h2>
  <table>
    <tr><th>Motion</th><th>Proposed by</th><th>Seconded by</th><th>Duration</th></tr>
    {{range .Motions}}<tr><td>{{.Type}}{{if .Proposal}}: {{.Proposal}}{{end}}</td><td>{{.Proposer}}</td><td>{{.Seconder}}</td><td>{{.Duration}}</td></tr>{{end}}
  </table>
  {{end}}
  {{range .Caucuses}}
  <h2>{{.Name}}</h2>
  <table>
    <tr><th>Speaker</th><th>Stance</th><th>Time</th></tr>
    {{range .Speeches}}<tr><td>{{.Who}}</td><td>{{.Stance}}</td><td>{{.Duration}}</td></tr>{{end}}
  </table>
  {{end}}
  {{if .Resolutions}}
  <h2>Draft Resolutions</h2>
  <table>
    <tr><th>Name</th><th>Proposed by</th><th>Seconded by</th><th>Status</th></tr>
    {{range .Resolutions}}<tr><td>{{.Name}}</td><td>{{.Proposer}}</td><td>{{.Seconder}}</td><td>{{lower .Status}}</td></tr>{{end}}
  </table>
  {{end}}
</body>
</html>`
