package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Decomposition is the response of the decomposition service: the resolved
// dependency tree plus everything that was found while building it.
type Decomposition struct {
	ID           string `json:"id,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
	MD5          string `json:"md5,omitempty"`

	MetaData *Meta `json:"metaData,omitempty"`

	Graph           *Component      `json:"graph,omitempty"`
	Components      []*Component    `json:"components,omitempty"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`

	// TotalNodes is a decimal string on the wire (64-bit protobuf integer).
	TotalNodes       string            `json:"totalNodes,omitempty"`
	DependencyCycles []DependencyCycle `json:"dependencyCycles,omitempty"`
}

// Meta describes the SBOM document that was decomposed.
type Meta struct {
	BOMVersion string            `json:"bomVersion,omitempty"`
	Tools      []*Component      `json:"tools,omitempty"`
	Project    *Component        `json:"project,omitempty"`
	Authors    []Contact         `json:"authors,omitempty"`
	Lifecycles []Lifecycle       `json:"lifecycles,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  *time.Time        `json:"createdAt,omitempty"`
}

type Contact struct {
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
	BOMRef string `json:"bomRef,omitempty"`
}

type Lifecycle struct {
	Phase       string `json:"phase,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// DecomposeOptions is the request sent to the decomposition service.
// File data is base64 encoded on the wire.
type DecomposeOptions struct {
	Files          []SBOMFile `json:"files"`
	OnlyVulnerable bool       `json:"only_vulnerable"`
	MaxDepth       int        `json:"max_depth"`
}

type SBOMFile struct {
	FileName string `json:"file_name"`
	Data     []byte `json:"data"`
}

// HasGraph reports whether there is a tree to visualize.
func (d *Decomposition) HasGraph() bool {
	return d != nil && d.Graph != nil
}

// NodeCount returns the number of nodes reported by the service, counting the
// graph itself when the reported value is missing or malformed.
func (d *Decomposition) NodeCount() int {
	if d == nil {
		return 0
	}
	if n, err := strconv.Atoi(d.TotalNodes); err == nil && n >= 0 {
		return n
	}
	if d.Graph == nil {
		return 0
	}
	return 1 + d.Graph.CountDescendants()
}

// Validate checks the tree invariants the visualization relies on.
// Violations are reported, not repaired; callers decide whether to warn or reject.
func (d *Decomposition) Validate() error {
	if !d.HasGraph() {
		return nil
	}

	var errs *multierror.Error
	d.Graph.Walk(func(c *Component, _ []int) bool {
		if c.Level < 0 {
			errs = multierror.Append(errs, fmt.Errorf("component %q: negative level %d", c.BOMRef, c.Level))
		}
		if c.MaxSeverity < 0 || c.MaxSeverity > 10 {
			errs = multierror.Append(errs, fmt.Errorf("component %q: max severity %g out of range [0, 10]", c.BOMRef, c.MaxSeverity))
		}
		if c.TotalCVECount < 0 {
			errs = multierror.Append(errs, fmt.Errorf("component %q: negative CVE count %d", c.BOMRef, c.TotalCVECount))
		}
		return true
	})
	return errs.ErrorOrNil()
}
