package summary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/sbom-sunburst/pkg/model"
	"github.com/ritzau/sbom-sunburst/pkg/severity"
)

func vuln(id string, r float64) model.Vulnerability {
	return model.Vulnerability{ID: id, MaxRating: &r}
}

func TestSummarizeEmpty(t *testing.T) {
	for _, d := range []*model.Decomposition{nil, {}} {
		s := Summarize(d)
		assert.Zero(t, s.TotalNodes)
		assert.Empty(t, s.VulnerabilityIDs)
		assert.Equal(t, Stats{}, s.Severity)
	}

	s := Summarize(&model.Decomposition{DependencyCycles: []model.DependencyCycle{{}, {}}})
	assert.Equal(t, 2, s.Cycles)
}

func TestSummarize(t *testing.T) {
	d := &model.Decomposition{
		Graph: &model.Component{Name: "shop", Type: model.TypeApplication, BOMRef: "shop", Children: []*model.Component{
			{Name: "express", Type: model.TypeLibrary, BOMRef: "express@4", Children: []*model.Component{
				{Name: "qs", Type: model.TypeLibrary, BOMRef: "qs@6.5", MaxSeverity: 7.5, Vulnerabilities: []model.Vulnerability{vuln("CVE-2022-24999", 7.5)}},
			}},
			{Name: "qs", Type: model.TypeLibrary, BOMRef: "qs@6.5", MaxSeverity: 7.5, Vulnerabilities: []model.Vulnerability{vuln("CVE-2022-24999", 7.5)}},
			{Name: "log4j-core", Type: model.TypeLibrary, BOMRef: "log4j@2.14", Vulnerabilities: []model.Vulnerability{vuln("CVE-2021-44228", 10), vuln("CVE-2021-45046", 9)}},
			{Name: "alpine", Type: model.TypeOperatingSystem, Version: "3.18", Vulnerabilities: []model.Vulnerability{vuln("CVE-2023-5363", 1)}},
		}},
		Vulnerabilities:  []model.Vulnerability{vuln("GHSA-xxxx", 4), {ID: ""}},
		DependencyCycles: []model.DependencyCycle{{Path: []string{"a", "b"}}},
	}

	s := Summarize(d)

	assert.Equal(t, 6, s.TotalNodes)
	assert.Equal(t, 5, s.UniqueComponents, "the two qs nodes are one component")
	assert.Equal(t, 4, s.VulnerableNodes)
	assert.Equal(t, 1, s.Cycles)
	assert.Equal(t, map[model.ComponentType]int{
		model.TypeApplication:     1,
		model.TypeLibrary:         4,
		model.TypeOperatingSystem: 1,
	}, s.Types)
	assert.Equal(t, map[severity.Band]int{
		severity.BandCritical: 1,
		severity.BandHigh:     2,
		severity.BandMedium:   0,
		severity.BandLow:      0,
		severity.BandInfo:     1,
	}, s.Bands)

	assert.Equal(t, []string{"CVE-2021-44228", "CVE-2021-45046", "CVE-2022-24999", "CVE-2023-5363", "GHSA-xxxx"}, s.VulnerabilityIDs)
	assert.Equal(t, 5, s.TotalCVEs)

	assert.InDelta(t, (7.5+7.5+10+1)/4, s.Severity.Mean, 1e-9)
	assert.InDelta(t, 10.0, s.Severity.Max, 1e-9)
	assert.InDelta(t, 10.0, s.Severity.P90, 1e-9)
}

func TestSummaryJSON(t *testing.T) {
	data, err := json.Marshal(Summarize(&model.Decomposition{Graph: &model.Component{Name: "a", Type: model.TypeApplication}}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"types":{"application":1}`)
	assert.Contains(t, string(data), `"vulnerabilityIds":[]`)
}

func TestSummarizeDocument(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := &model.Decomposition{
		ID:           "42",
		SerialNumber: "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79",
		MD5:          "d41d8cd98f00b204e9800998ecf8427e",
		MetaData: &model.Meta{
			CreatedAt: &created,
			Project:   &model.Component{Name: "shop", Version: "1.2.0", Type: model.TypeApplication},
			Tools:     []*model.Component{{Name: "syft", Version: "1.0.1"}, {Name: "trivy"}, nil, {}},
		},
		Graph: &model.Component{Name: "shop", Type: model.TypeApplication, Children: []*model.Component{
			{Name: "qs", Type: model.TypeLibrary, BOMRef: "qs@6.5"},
		}},
		Components: []*model.Component{{Name: "shop"}, {Name: "qs"}, {Name: "express"}},
	}

	s := Summarize(d)

	assert.Equal(t, Document{
		ID:           "42",
		SerialNumber: "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79",
		MD5:          "d41d8cd98f00b204e9800998ecf8427e",
		CreatedAt:    &created,
		Project:      &Project{Name: "shop", Version: "1.2.0", Type: model.TypeApplication},
		Tools:        []string{"syft 1.0.1", "trivy"},
	}, s.Document)
	assert.Equal(t, 3, s.UniqueComponents, "the service's component list wins over the graph")
	assert.Equal(t, 2, s.TotalNodes)

	// without a component list the graph is used
	d.Components = nil
	assert.Equal(t, 2, Summarize(d).UniqueComponents)

	// document info is reported even without a graph
	d.Graph = nil
	assert.Equal(t, "42", Summarize(d).Document.ID)
	assert.Equal(t, []string{}, Summarize(nil).Document.Tools)
}
