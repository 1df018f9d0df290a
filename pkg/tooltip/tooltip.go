// Package tooltip renders the hover card of a sunburst sector.
package tooltip

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"github.com/ritzau/sbom-sunburst/pkg/label"
	"github.com/ritzau/sbom-sunburst/pkg/model"
)

// DescriptionLimit caps the description shown in a tooltip.
const DescriptionLimit = 120

const cardTemplate = `<div style="padding: 12px; min-width: 300px; font-family: Arial, sans-serif;">
  <div style="font-weight: bold; font-size: 14px; margin-bottom: 8px; color: #333;">
    {{.Name}}
    {{- with .Vulnerabilities}}
    <span style="color: #ff4d4f; margin-left: 8px; font-size: 12px;">({{vulnCount (len .)}})</span>
    {{- end}}
  </div>
  <div style="font-size: 12px; color: #666; line-height: 1.5;">
    <div><strong>Version:</strong> {{orNA .Version}}</div>
    <div><strong>Type:</strong> {{.Type}}</div>
    <div><strong>Group:</strong> {{orNA .Group}}</div>
    <div><strong>Level:</strong> {{.Level}}</div>
    <div><strong>Max severity:</strong> {{score .MaxSeverity}}</div>
    <div><strong>Total CVEs:</strong> {{.TotalCVECount}}</div>
    <div><strong>Children:</strong> {{len .Children}}</div>
    {{- with .Description}}
    <div style="margin-top: 6px;"><strong>Description:</strong> {{truncate .}}</div>
    {{- end}}
    {{- with .Vulnerabilities}}
    <br/>Vulnerabilities:
    <ul>
      {{- range .}}
      <li>{{.ID}} ({{score .Rating}})</li>
      {{- end}}
    </ul>
    {{- end}}
    <div style="margin-top: 6px; font-size: 11px; color: #999;"><strong>BOM Ref:</strong> {{.BOMRef}}</div>
  </div>
</div>`

var card = template.Must(template.New("tooltip").Funcs(template.FuncMap{
	"vulnCount": VulnerabilityCount,
	"orNA":      orNA,
	"score":     formatScore,
	"truncate": func(s string) string {
		return label.Truncate(s, DescriptionLimit)
	},
}).Parse(cardTemplate))

// Generate renders the tooltip markup of a component. All component fields are escaped.
func Generate(c *model.Component) template.HTML {
	if c == nil {
		return ""
	}

	var buf bytes.Buffer
	if err := card.Execute(&buf, c); err != nil {
		// The template only reads plain fields; an error here is a programming bug.
		panic(fmt.Sprintf("tooltip template: %v", err))
	}
	return template.HTML(buf.String())
}

// VulnerabilityCount phrases a finding count, e.g. "1 vulnerability" or "3 vulnerabilities".
func VulnerabilityCount(n int) string {
	if n == 1 {
		return "1 vulnerability"
	}
	return strconv.Itoa(n) + " vulnerabilities"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
