package tooltip

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ritzau/sbom-sunburst/pkg/model"
)

func score(f float64) *float64 { return &f }

func TestGenerateFullComponent(t *testing.T) {
	c := &model.Component{
		Name:          "openssl",
		Version:       "3.0.1",
		Group:         "org.openssl",
		Type:          model.TypeLibrary,
		Level:         2,
		MaxSeverity:   9.8,
		TotalCVECount: 2,
		BOMRef:        "pkg:generic/openssl@3.0.1",
		Children:      []*model.Component{{}, {}, {}},
		Vulnerabilities: []model.Vulnerability{
			{ID: "CVE-2022-0001", MaxRating: score(9.8)},
			{ID: "CVE-2022-0002", Ratings: []model.Rating{{Score: score(4.3)}}},
		},
	}

	html := string(Generate(c))

	for _, want := range []string{
		"openssl",
		"(2 vulnerabilities)",
		"<strong>Version:</strong> 3.0.1",
		"<strong>Type:</strong> library",
		"<strong>Group:</strong> org.openssl",
		"<strong>Level:</strong> 2",
		"<strong>Max severity:</strong> 9.8",
		"<strong>Total CVEs:</strong> 2",
		"<strong>Children:</strong> 3",
		"<li>CVE-2022-0001 (9.8)</li>",
		"<li>CVE-2022-0002 (4.3)</li>",
		"pkg:generic/openssl@3.0.1",
	} {
		assert.Contains(t, html, want)
	}
	assert.NotContains(t, html, "Description:")
}

func TestGenerateDefaults(t *testing.T) {
	html := string(Generate(&model.Component{Name: "app", Type: model.TypeApplication}))

	assert.Contains(t, html, "<strong>Version:</strong> N/A")
	assert.Contains(t, html, "<strong>Group:</strong> N/A")
	assert.Contains(t, html, "<strong>Children:</strong> 0")
	assert.NotContains(t, html, "vulnerabilit")
	assert.NotContains(t, html, "<ul>")
}

func TestGenerateSingular(t *testing.T) {
	c := &model.Component{Name: "x", Vulnerabilities: []model.Vulnerability{{ID: "CVE-1"}}}
	assert.Contains(t, string(Generate(c)), "(1 vulnerability)")
}

func TestGenerateTruncatesDescription(t *testing.T) {
	c := &model.Component{Name: "x", Description: strings.Repeat("d", 200)}
	html := string(Generate(c))

	assert.Contains(t, html, strings.Repeat("d", 117)+"...")
	assert.NotContains(t, html, strings.Repeat("d", 118))
}

func TestGenerateEscapes(t *testing.T) {
	c := &model.Component{Name: `<script>alert("x")</script>`}
	html := string(Generate(c))

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestGenerateNil(t *testing.T) {
	assert.Empty(t, Generate(nil))
}

func TestVulnerabilityCount(t *testing.T) {
	assert.Equal(t, "0 vulnerabilities", VulnerabilityCount(0))
	assert.Equal(t, "1 vulnerability", VulnerabilityCount(1))
	assert.Equal(t, "12 vulnerabilities", VulnerabilityCount(12))
}
