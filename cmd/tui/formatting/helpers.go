package formatting

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rivo/tview"
)

// detailBuilder accumulates "[yellow]Label: [white]value" lines.
type detailBuilder struct {
	strings.Builder
}

func (b *detailBuilder) field(label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if strings.Contains(value, "\n") {
		fmt.Fprintf(b, "[yellow]%s:[white]\n", label)
		writeIndentedLines(&b.Builder, value, "  ")
		return
	}
	fmt.Fprintf(b, "[yellow]%s: [white]%s\n", label, tview.Escape(value))
}

func (b *detailBuilder) list(label string, values []string) {
	if len(values) > 0 {
		b.field(label, strings.Join(values, ", "))
	}
}

func (b *detailBuilder) section(label string) {
	fmt.Fprintf(b, "[yellow]%s:[white]\n", label)
}

func (b *detailBuilder) text() string {
	return strings.TrimRight(b.String(), "\n")
}

func writeIndentedLines(builder *strings.Builder, text string, indent string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		builder.WriteString(indent)
		builder.WriteString(tview.Escape(line))
		builder.WriteByte('\n')
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func formatFloatSlice(values []float64) string {
	if len(values) == 0 {
		return "[]"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		s := strconv.FormatFloat(v, 'f', 6, 64)
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
		if s == "" || s == "-" {
			s = "0"
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MakeHelpText builds the bordered key legend shown under each page.
func MakeHelpText(text string) *tview.TextView {
	view := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignCenter).
		SetText(text)
	view.SetBorder(true).SetTitle("Controls")
	return view
}

func Slugify(input string) string {
	var builder strings.Builder
	for _, r := range input {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			builder.WriteRune(unicode.ToLower(r))
		case r == '-', r == '_':
			builder.WriteRune(r)
		case unicode.IsSpace(r):
			builder.WriteRune('-')
		}
	}
	return strings.Trim(builder.String(), "-_")
}

func GenerateJSONFilename(title string, now time.Time) string {
	slug := Slugify(title)
	if slug == "" {
		slug = "ogc_document"
	}
	return fmt.Sprintf("%s_%s.json", slug, now.Format("20060102_150405"))
}
