// Package output renders visualization data on a terminal.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ritzau/sbom-sunburst/pkg/model"
	"github.com/ritzau/sbom-sunburst/pkg/severity"
	"github.com/ritzau/sbom-sunburst/pkg/summary"
	"github.com/ritzau/sbom-sunburst/pkg/sunburst"
	"github.com/ritzau/sbom-sunburst/pkg/tooltip"
)

const swatchGlyph = "●"

var background = colorful.Color{R: 1, G: 1, B: 1}

// Swatch converts a chart color token to the opaque color it shows as on a
// white page. Tokens are #rgb, #rrggbb or #rrggbbaa.
func Swatch(token severity.Color) (colorful.Color, error) {
	hex := string(token)
	if !wellFormed(hex) {
		return colorful.Color{}, fmt.Errorf("color %q: want #rgb, #rrggbb or #rrggbbaa", token)
	}

	alpha := 1.0
	if len(hex) == 9 {
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return colorful.Color{}, fmt.Errorf("color %q: invalid alpha: %w", token, err)
		}
		alpha = float64(a) / 255
		hex = hex[:7]
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("color %q: %w", token, err)
	}
	return background.BlendRgb(c, alpha).Clamped(), nil
}

// wellFormed checks the token shape; colorful.Hex alone accepts short and
// over-long strings.
func wellFormed(hex string) bool {
	switch len(hex) {
	case 4, 7, 9:
	default:
		return false
	}
	if hex[0] != '#' {
		return false
	}
	for _, r := range hex[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func swatch(token severity.Color) string {
	c, err := Swatch(token)
	if err != nil {
		return swatchGlyph
	}
	r, g, b := c.RGB255()
	return color.RGB(int(r), int(g), int(b)).Sprint(swatchGlyph)
}

// PrintTree prints a render tree, one sector per line, with its color swatch,
// label and value.
func PrintTree(w io.Writer, node *sunburst.RenderNode) {
	if node == nil {
		fmt.Fprintln(w, "no data")
		return
	}

	bold := color.New(color.Bold)
	fmt.Fprintf(w, "%s %s %s\n", swatch(node.Color), bold.Sprint(node.Label), valueOf(node))
	printChildren(w, node.Children, "")
}

func printChildren(w io.Writer, children []*sunburst.RenderNode, prefix string) {
	faint := color.New(color.Faint)
	for i, child := range children {
		branch, indent := "├── ", "│   "
		if i == len(children)-1 {
			branch, indent = "└── ", "    "
		}
		fmt.Fprintf(w, "%s%s%s %s %s %s\n",
			prefix, faint.Sprint(branch), swatch(child.Color), child.Label, valueOf(child), faint.Sprint(child.ID))
		printChildren(w, child.Children, prefix+indent)
	}
}

func valueOf(node *sunburst.RenderNode) string {
	return color.New(color.FgCyan).Sprintf("(%d)", node.Value)
}

// PrintCycles prints the dependency cycles broken by the decomposition service.
func PrintCycles(w io.Writer, cycles []model.DependencyCycle) {
	if len(cycles) == 0 {
		return
	}

	yellow := color.New(color.FgYellow)
	fmt.Fprintln(w)
	yellow.Fprintf(w, "%d dependency cycle(s) resolved\n", len(cycles))
	for i, cycle := range cycles {
		fmt.Fprintf(w, "Resolved cycle #%d\n", i)
		for _, ref := range cycle.Path {
			fmt.Fprintf(w, "  %s\n", ref)
		}
	}
}

// PrintComponent prints the details of a resolved component.
func PrintComponent(w io.Writer, c *model.Component) {
	if c == nil {
		fmt.Fprintln(w, "no matching component")
		return
	}

	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s %s", swatch(severity.ColorFor(c)), c.Name)
	if n := len(c.Vulnerabilities); n > 0 {
		fmt.Fprintf(w, " (%s)", tooltip.VulnerabilityCount(n))
	}
	fmt.Fprintln(w)

	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-14s %s\n", name+":", value)
		}
	}
	field("Version", c.Version)
	field("Type", string(c.Type))
	field("Group", c.Group)
	field("Level", strconv.Itoa(c.Level))
	field("BOM ref", c.BOMRef)
	field("PURL", c.PURL)
	field("Max severity", strconv.FormatFloat(c.MaxSeverity, 'g', -1, 64))
	field("Total CVEs", strconv.Itoa(c.TotalCVECount))
	field("Children", strconv.Itoa(len(c.Children)))

	if len(c.Vulnerabilities) == 0 {
		return
	}
	red := color.New(color.FgRed)
	fmt.Fprintln(w, "  Vulnerabilities:")
	for _, v := range c.Vulnerabilities {
		r := v.Rating()
		band := severity.BandFor(r)
		fmt.Fprintf(w, "    %s %s %s %s\n", swatch(band.Color()), red.Sprint(v.ID), strconv.FormatFloat(r, 'g', -1, 64), band)
	}
}

// PrintSummary prints decomposition statistics.
func PrintSummary(w io.Writer, s summary.Summary) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "SBOM summary")
	printDocument(w, s.Document)
	fmt.Fprintf(w, "  Nodes: %d (%d unique components)\n", s.TotalNodes, s.UniqueComponents)
	fmt.Fprintf(w, "  Vulnerable nodes: %d, distinct vulnerabilities: %d\n", s.VulnerableNodes, s.TotalCVEs)
	if s.VulnerableNodes > 0 {
		fmt.Fprintf(w, "  Severity: mean %.1f, p90 %.1f, max %.1f\n", s.Severity.Mean, s.Severity.P90, s.Severity.Max)
	}

	var bands []string
	for _, band := range severity.Bands {
		if n := s.Bands[band]; n > 0 {
			bands = append(bands, fmt.Sprintf("%s %s %d", swatch(band.Color()), band, n))
		}
	}
	if len(bands) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(bands, "  "))
	}
}

func printDocument(w io.Writer, doc summary.Document) {
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-14s %s\n", name+":", value)
		}
	}
	field("ID", doc.ID)
	field("Serial number", doc.SerialNumber)
	field("MD5", doc.MD5)
	if doc.CreatedAt != nil {
		field("Created", doc.CreatedAt.Format(time.RFC3339))
	}
	if p := doc.Project; p != nil {
		field("Project", strings.TrimSpace(p.Name+" "+p.Version))
		field("Project type", string(p.Type))
	}
	field("Tools", strings.Join(doc.Tools, ", "))
}
