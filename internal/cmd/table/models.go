// Package table converts placemap values into rows for tabular CLI output.
package table

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/agentstation/placemap/internal/cmd/emoji"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// PlacesToTableData converts search results to table format. Wide output adds
// the address, sources and attached layers.
func PlacesToTableData(ps []places.Place, wide bool) Data {
	headers := []string{"ID", "NAME", "CATEGORY", "DISTANCE", "CONFIDENCE"}
	align := []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight}
	if wide {
		headers = append(headers, "ADDRESS", "SOURCES", "LAYERS")
		align = append(align, AlignLeft, AlignLeft, AlignLeft)
	}

	rows := make([][]string, 0, len(ps))
	for i := range ps {
		p := &ps[i]
		row := []string{
			p.ID,
			Truncate(p.Name, 40),
			dash(p.Category.Primary),
			FormatDistance(p.Distance),
			FormatConfidence(p.Confidence),
		}
		if wide {
			row = append(row,
				dash(FormatAddress(p.Address)),
				dash(strings.Join(p.SourceNames(), ", ")),
				dash(overlaySlugs(p.Layers)),
			)
		}
		rows = append(rows, row)
	}

	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// PlaceToTableData renders one place as a property/value table.
func PlaceToTableData(p *places.Place) Data {
	rows := [][]string{
		{"ID", p.ID},
		{"Name", p.Name},
		{"Location", fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lon)},
		{"Category", dash(p.Category.Primary)},
		{"Confidence", FormatConfidence(p.Confidence)},
	}
	if len(p.Category.Secondary) > 0 {
		rows = append(rows, []string{"Secondary", strings.Join(p.Category.Secondary, ", ")})
	}
	if !p.Address.IsZero() {
		rows = append(rows, []string{"Address", FormatAddress(p.Address)})
	}
	if p.Brand != "" {
		rows = append(rows, []string{"Brand", p.Brand})
	}
	if p.OperatingStatus != "" {
		rows = append(rows, []string{"Status", p.OperatingStatus})
	}
	for _, c := range []struct {
		label  string
		values []string
	}{
		{"Websites", p.Contacts.Websites},
		{"Phones", p.Contacts.Phones},
		{"Emails", p.Contacts.Emails},
		{"Socials", p.Contacts.Socials},
	} {
		if len(c.values) > 0 {
			rows = append(rows, []string{c.label, strings.Join(c.values, ", ")})
		}
	}
	for _, name := range p.SourceNames() {
		rows = append(rows, []string{"Source: " + name, p.Sources[name].ExternalID})
	}
	for _, o := range p.Layers {
		rows = append(rows, []string{"Layer: " + o.Slug, o.Name})
	}

	return Data{Headers: []string{"PROPERTY", "VALUE"}, Rows: rows}
}

// ProvidersToTableData converts provider descriptions to table format.
func ProvidersToTableData(infos []providers.Info) Data {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		role := "external"
		if info.Authoritative {
			role = "authoritative"
		}
		rows = append(rows, []string{
			info.Name,
			strconv.Itoa(info.Priority),
			info.Timeout.String(),
			role,
		})
	}
	return Data{
		Headers:         []string{"NAME", "PRIORITY", "TIMEOUT", "ROLE"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignRight, AlignLeft},
	}
}

// LayersToTableData converts layers to table format.
func LayersToTableData(layers []places.Layer) Data {
	rows := make([][]string, 0, len(layers))
	for _, l := range layers {
		rows = append(rows, []string{l.Slug, l.Name, dash(l.Icon), Truncate(dash(l.Description), 60)})
	}
	return Data{Headers: []string{"SLUG", "NAME", "ICON", "DESCRIPTION"}, Rows: rows}
}

// HealthToTableData converts a provider health map to table format, sorted
// by provider name.
func HealthToTableData(status map[string]bool) Data {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	slices.Sort(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		state := emoji.Success + " healthy"
		if !status[name] {
			state = emoji.Error + " unhealthy"
		}
		rows = append(rows, []string{name, state})
	}
	return Data{Headers: []string{"PROVIDER", "STATUS"}, Rows: rows}
}

// FormatDistance formats a distance in meters, or "-" when unknown.
func FormatDistance(d *float64) string {
	if d == nil {
		return "-"
	}
	if *d >= 1000 {
		return fmt.Sprintf("%.2f km", *d/1000)
	}
	return fmt.Sprintf("%.0f m", *d)
}

// FormatConfidence formats a confidence score with two decimals.
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', 2, 64)
}

// FormatAddress joins the non-empty address parts.
func FormatAddress(a places.Address) string {
	parts := make([]string, 0, 5)
	for _, s := range []string{a.Street, a.City, a.State, a.Postcode, a.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// FormatNumber formats large numbers with comma separators.
func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(str, "-")
	str = strings.TrimPrefix(str, "-")
	if len(str) <= 3 {
		if neg {
			return "-" + str
		}
		return str
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n || n < 4 {
		return s
	}
	return string(r[:n-3]) + "..."
}

func overlaySlugs(overlays []places.Overlay) string {
	slugs := make([]string, len(overlays))
	for i, o := range overlays {
		slugs[i] = o.Slug
	}
	return strings.Join(slugs, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
