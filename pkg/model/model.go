package model

import (
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

// ComponentType is the CycloneDX component classification reported by the
// decomposition service.
type ComponentType = cdx.ComponentType

const (
	TypeApplication     ComponentType = cdx.ComponentTypeApplication
	TypeLibrary         ComponentType = cdx.ComponentTypeLibrary
	TypeFramework       ComponentType = cdx.ComponentTypeFramework
	TypeContainer       ComponentType = cdx.ComponentTypeContainer
	TypeOperatingSystem ComponentType = cdx.ComponentTypeOS
	TypeDevice          ComponentType = cdx.ComponentTypeDevice
	TypeFirmware        ComponentType = cdx.ComponentTypeFirmware
	TypeFile            ComponentType = cdx.ComponentTypeFile
)

// ComponentTypes lists the component types the visualization knows about,
// in the order they are presented in legends and help output.
var ComponentTypes = []ComponentType{
	TypeApplication,
	TypeLibrary,
	TypeFramework,
	TypeContainer,
	TypeOperatingSystem,
	TypeDevice,
	TypeFirmware,
	TypeFile,
}

// Component is one node of the resolved dependency tree.
// The tree is acyclic: cycles were broken upstream and are reported
// separately as DependencyCycle entries.
type Component struct {
	Name        string        `json:"name"`
	Group       string        `json:"group,omitempty"`
	Version     string        `json:"version,omitempty"`
	Description string        `json:"description,omitempty"`
	Type        ComponentType `json:"type"`
	Level       int           `json:"level"`
	BOMRef      string        `json:"bomRef"`
	PURL        string        `json:"purl,omitempty"`

	Children        []*Component    `json:"children,omitempty"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`

	HasTransitiveVulns bool    `json:"hasTransitiveVulns"`
	MaxSeverity        float64 `json:"maxSeverity"`
	TotalCVECount      int     `json:"totalCveCount"`
}

// Vulnerability is a finding attached to a component.
type Vulnerability struct {
	ID             string  `json:"id"`
	Source         *Source `json:"source,omitempty"`
	Description    string  `json:"description,omitempty"`
	Detail         string  `json:"detail,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`

	MaxRating  *float64   `json:"maxRating,omitempty"`
	Ratings    []Rating   `json:"ratings,omitempty"`
	CWEs       []int      `json:"cwes,omitempty"`
	Advisories []Advisory `json:"advisories,omitempty"`
	Affects    []Affect   `json:"affects,omitempty"`

	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
}

// Rating is a single severity assessment of a vulnerability.
type Rating struct {
	Source        *Source           `json:"source,omitempty"`
	Score         *float64          `json:"score,omitempty"`
	Severity      cdx.Severity      `json:"severity,omitempty"`
	Method        cdx.ScoringMethod `json:"method,omitempty"`
	Vector        string            `json:"vector,omitempty"`
	Justification string            `json:"justification,omitempty"`
}

type Source struct {
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
}

type Advisory struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// Affect names a component ref and the version ranges a vulnerability applies to.
type Affect struct {
	Ref    string  `json:"ref"`
	Ranges []Range `json:"ranges,omitempty"`
}

type Range struct {
	Version string `json:"version,omitempty"`
	Range   string `json:"range,omitempty"`
	Status  string `json:"status,omitempty"`
}

// DependencyCycle is a cycle that was broken upstream. Display only.
type DependencyCycle struct {
	Path []string `json:"path"`
}

// Rating returns the vulnerability's max rating. When the service did not
// fill it in, the highest scored rating is used; unrated findings yield 0.
func (v Vulnerability) Rating() float64 {
	if v.MaxRating != nil {
		return *v.MaxRating
	}

	var best float64
	for _, r := range v.Ratings {
		if r.Score != nil && *r.Score > best {
			best = *r.Score
		}
	}
	return best
}

// IsStructural reports whether the component only groups other components
// and cannot be rated directly.
func (c *Component) IsStructural() bool {
	return c.Type == TypeApplication || c.Type == TypeFile
}

// Walk visits the tree rooted at c in depth-first pre-order. The path holds the
// child indices from c to the visited node. Returning false from fn stops the walk.
func (c *Component) Walk(fn func(node *Component, path []int) bool) {
	if c == nil {
		return
	}
	c.walk(nil, fn)
}

func (c *Component) walk(path []int, fn func(*Component, []int) bool) bool {
	if !fn(c, path) {
		return false
	}
	for i, child := range c.Children {
		if child == nil {
			continue
		}
		if !child.walk(append(path[:len(path):len(path)], i), fn) {
			return false
		}
	}
	return true
}

// CountDescendants returns the number of transitive descendants of c, not counting c.
func (c *Component) CountDescendants() int {
	if c == nil {
		return 0
	}

	count := 0
	for _, child := range c.Children {
		if child == nil {
			continue
		}
		count += 1 + child.CountDescendants()
	}
	return count
}
