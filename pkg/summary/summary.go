// Package summary computes the SBOM statistics shown next to the chart.
package summary

import (
	"slices"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ritzau/sbom-sunburst/pkg/model"
	"github.com/ritzau/sbom-sunburst/pkg/severity"
)

// Summary describes a decomposition as a whole.
type Summary struct {
	Document Document `json:"document"`

	TotalNodes       int                         `json:"totalNodes"`
	UniqueComponents int                         `json:"uniqueComponents"`
	VulnerableNodes  int                         `json:"vulnerableNodes"`
	TotalCVEs        int                         `json:"totalCves"`
	Cycles           int                         `json:"cycles"`
	Bands            map[severity.Band]int       `json:"bands"`
	Types            map[model.ComponentType]int `json:"types"`
	Severity         Stats                       `json:"severity"`
	VulnerabilityIDs []string                    `json:"vulnerabilityIds"`
}

// Document identifies the SBOM that was decomposed.
type Document struct {
	ID           string     `json:"id,omitempty"`
	SerialNumber string     `json:"serialNumber,omitempty"`
	MD5          string     `json:"md5,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	Project      *Project   `json:"project,omitempty"`
	Tools        []string   `json:"tools"`
}

type Project struct {
	Name    string              `json:"name"`
	Version string              `json:"version,omitempty"`
	Type    model.ComponentType `json:"type,omitempty"`
}

// Stats summarizes the severity of the vulnerable nodes.
type Stats struct {
	Mean float64 `json:"mean"`
	P90  float64 `json:"p90"`
	Max  float64 `json:"max"`
}

// Summarize walks the graph of d. A nil decomposition or one without a graph
// yields an empty summary. The unique component count is the length of the
// service's component list, or the number of distinct graph nodes when the
// service sent none.
func Summarize(d *model.Decomposition) Summary {
	s := Summary{
		Document:         Document{Tools: []string{}},
		Bands:            map[severity.Band]int{},
		Types:            map[model.ComponentType]int{},
		VulnerabilityIDs: []string{},
	}
	if d == nil {
		return s
	}
	s.Document = document(d)
	s.Cycles = len(d.DependencyCycles)
	s.UniqueComponents = len(d.Components)
	if d.Graph == nil {
		return s
	}

	var nodes []*model.Component
	d.Graph.Walk(func(c *model.Component, _ []int) bool {
		nodes = append(nodes, c)
		return true
	})

	s.TotalNodes = len(nodes)
	if s.UniqueComponents == 0 {
		s.UniqueComponents = len(lo.UniqBy(nodes, identity))
	}
	s.Types = lo.CountValuesBy(nodes, func(c *model.Component) model.ComponentType { return c.Type })

	vulnerable := lo.Filter(nodes, func(c *model.Component, _ int) bool { return len(c.Vulnerabilities) > 0 })
	s.VulnerableNodes = len(vulnerable)

	ratings := lo.Map(vulnerable, func(c *model.Component, _ int) float64 { return rating(c) })
	for _, band := range severity.Bands {
		s.Bands[band] = 0
	}
	for band, n := range lo.CountValuesBy(ratings, severity.BandFor) {
		s.Bands[band] = n
	}
	s.Severity = describe(ratings)

	ids := lo.FlatMap(nodes, func(c *model.Component, _ int) []string {
		return lo.Map(c.Vulnerabilities, func(v model.Vulnerability, _ int) string { return v.ID })
	})
	ids = append(ids, lo.Map(d.Vulnerabilities, func(v model.Vulnerability, _ int) string { return v.ID })...)
	ids = lo.Uniq(lo.Compact(ids))
	slices.Sort(ids)
	s.VulnerabilityIDs = ids
	s.TotalCVEs = len(ids)

	return s
}

func document(d *model.Decomposition) Document {
	doc := Document{ID: d.ID, SerialNumber: d.SerialNumber, MD5: d.MD5, Tools: []string{}}
	if d.MetaData == nil {
		return doc
	}

	doc.CreatedAt = d.MetaData.CreatedAt
	if p := d.MetaData.Project; p != nil {
		doc.Project = &Project{Name: p.Name, Version: p.Version, Type: p.Type}
	}
	doc.Tools = lo.FilterMap(d.MetaData.Tools, func(c *model.Component, _ int) (string, bool) {
		if c == nil || c.Name == "" {
			return "", false
		}
		if c.Version == "" {
			return c.Name, true
		}
		return c.Name + " " + c.Version, true
	})
	return doc
}

// identity is what makes two tree nodes the same component: the bomRef when
// the SBOM provides one.
func identity(c *model.Component) string {
	if c.BOMRef != "" {
		return c.BOMRef
	}
	return c.Group + "/" + c.Name + "@" + c.Version
}

// rating is the severity of a vulnerable node: its reported maximum, or the
// highest rating among its own findings when that is larger.
func rating(c *model.Component) float64 {
	r := c.MaxSeverity
	for _, v := range c.Vulnerabilities {
		r = max(r, v.Rating())
	}
	return r
}

func describe(ratings []float64) Stats {
	if len(ratings) == 0 {
		return Stats{}
	}

	sorted := slices.Clone(ratings)
	slices.Sort(sorted)
	return Stats{
		Mean: stat.Mean(sorted, nil),
		P90:  stat.Quantile(0.9, stat.Empirical, sorted, nil),
		Max:  floats.Max(sorted),
	}
}
