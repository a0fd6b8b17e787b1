// package formatter renders track pairs and run summaries as plain text, Markdown, or JSON
package formatter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/shared"
	"github.com/desertthunder/forro/internal/tasks"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat maps a flag value to a [Format]. "md" is accepted for Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// IndexedPair is a pair together with its position in the store.
type IndexedPair struct {
	Index int              `json:"index"`
	Pair  models.TrackPair `json:"pair"`
}

// FilterPairs keeps the pairs whose status matches. An empty status or "all" keeps every pair.
func FilterPairs(pairs []models.TrackPair, status string) ([]IndexedPair, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch models.Status(status) {
	case "", "all", models.StatusPending, models.StatusAdded, models.StatusUnavailable:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, status)
	}

	out := make([]IndexedPair, 0, len(pairs))
	for i, p := range pairs {
		if status != "" && status != "all" && string(p.Status()) != status {
			continue
		}
		out = append(out, IndexedPair{Index: i, Pair: p})
	}
	return out, nil
}

// Pairs renders pairs in the given format.
func Pairs(pairs []IndexedPair, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return PairsToMarkdown(pairs), nil
	case FormatJSON:
		return PairsToJSON(pairs)
	default:
		return PairsToText(pairs), nil
	}
}

// PairsToText lists one pair per line with its status.
func PairsToText(pairs []IndexedPair) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Track pairs: %d\n", len(pairs))
	for _, ip := range pairs {
		fmt.Fprintf(&buf, "%4d. %s [%s]\n", ip.Index+1, ip.Pair.String(), ip.Pair.Status())
	}
	return buf.Bytes()
}

// PairsToMarkdown renders pairs as a Markdown table.
func PairsToMarkdown(pairs []IndexedPair) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Track pairs\n\n")
	fmt.Fprintf(&buf, "**Pairs**: %d\n\n", len(pairs))
	buf.WriteString("| # | Brazilian artist | Brazilian track | Original artist | Original track | Status | Added |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for _, ip := range pairs {
		p := ip.Pair
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %s | %s |\n",
			ip.Index+1,
			escapeCell(p.BrazilianArtist),
			escapeCell(p.BrazilianTrack),
			escapeCell(p.OriginalArtist),
			escapeCell(p.OriginalTrack),
			p.Status(),
			p.AddedAt,
		)
	}
	return buf.Bytes()
}

// PairsToJSON encodes pairs as an indented JSON array.
func PairsToJSON(pairs []IndexedPair) ([]byte, error) {
	data, err := shared.MarshalJSON(pairs, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pairs: %w", err)
	}
	return append(data, '\n'), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// Summary renders a run summary in the given format.
func Summary(s *tasks.RunSummary, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return SummaryToMarkdown(s), nil
	case FormatJSON:
		return SummaryToJSON(s)
	default:
		return SummaryToText(s), nil
	}
}

type countLine struct {
	label string
	value int
}

func countLines(s *tasks.RunSummary) []countLine {
	lines := []countLine{
		{"Total pairs", s.Total},
		{"Already in playlist", s.AlreadyInPlaylist},
	}
	if s.Mode == tasks.ModeBuild {
		lines = append(lines, countLine{"Added this run", s.Added})
	}
	lines = append(lines,
		countLine{"Unavailable this run", s.Unavailable},
		countLine{"Checked", s.Checked},
		countLine{"Skipped", s.Skipped},
		countLine{"Failed lookups", s.Failed()},
		countLine{"Total in playlist", s.InPlaylist},
	)
	return lines
}

func runTitle(s *tasks.RunSummary) string {
	title := fmt.Sprintf("Playlist %s", s.Mode)
	if s.DryRun {
		title += " (dry run)"
	}
	return title
}

// SummaryToText renders counters followed by the not-found and failed pairs. Failed pairs are
// listed apart from not-found ones since they stay pending and will be retried.
func SummaryToText(s *tasks.RunSummary) []byte {
	var buf bytes.Buffer
	buf.WriteString(runTitle(s) + "\n")
	if s.RunID != "" {
		fmt.Fprintf(&buf, "Run: %s\n", s.RunID)
	}
	for _, l := range countLines(s) {
		fmt.Fprintf(&buf, "%s: %d\n", l.label, l.value)
	}
	fmt.Fprintf(&buf, "Duration: %s\n", s.Duration.Round(time.Millisecond))

	if len(s.NotFound) > 0 {
		buf.WriteString("\nNot found:\n")
		for _, p := range s.NotFound {
			fmt.Fprintf(&buf, "  - %s\n", p)
		}
	}
	if len(s.Failures) > 0 {
		buf.WriteString("\nLookup failures (left pending):\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&buf, "  - #%d %s: %v\n", f.Index+1, f.Pair, f.Err)
		}
	}
	if s.Interrupted {
		buf.WriteString("\nRun interrupted before the last pair.\n")
	}
	return buf.Bytes()
}

// SummaryToMarkdown renders the same content as [SummaryToText] with Markdown headings.
func SummaryToMarkdown(s *tasks.RunSummary) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", runTitle(s))
	if s.RunID != "" {
		fmt.Fprintf(&buf, "**Run**: `%s`\n\n", s.RunID)
	}
	for _, l := range countLines(s) {
		fmt.Fprintf(&buf, "- **%s**: %d\n", l.label, l.value)
	}

	if len(s.NotFound) > 0 {
		buf.WriteString("\n## Not found\n\n")
		for _, p := range s.NotFound {
			fmt.Fprintf(&buf, "- %s\n", p)
		}
	}
	if len(s.Failures) > 0 {
		buf.WriteString("\n## Lookup failures\n\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&buf, "- #%d %s: `%v`\n", f.Index+1, f.Pair, f.Err)
		}
	}
	if s.Interrupted {
		buf.WriteString("\n> Run interrupted before the last pair.\n")
	}
	return buf.Bytes()
}

type failureJSON struct {
	Index int              `json:"index"`
	Pair  models.TrackPair `json:"pair"`
	Error string           `json:"error"`
}

type summaryJSON struct {
	RunID             string             `json:"run_id,omitempty"`
	Mode              string             `json:"mode"`
	DryRun            bool               `json:"dry_run"`
	Total             int                `json:"total"`
	AlreadyInPlaylist int                `json:"already_in_playlist"`
	Added             int                `json:"added"`
	Unavailable       int                `json:"unavailable"`
	Checked           int                `json:"checked"`
	Skipped           int                `json:"skipped"`
	InPlaylist        int                `json:"in_playlist"`
	NotFound          []models.TrackPair `json:"not_found"`
	Failures          []failureJSON      `json:"failures"`
	Interrupted       bool               `json:"interrupted"`
	DurationMS        int64              `json:"duration_ms"`
}

// SummaryToJSON encodes a run summary. Errors are flattened to their messages.
func SummaryToJSON(s *tasks.RunSummary) ([]byte, error) {
	out := summaryJSON{
		RunID:             s.RunID,
		Mode:              s.Mode.String(),
		DryRun:            s.DryRun,
		Total:             s.Total,
		AlreadyInPlaylist: s.AlreadyInPlaylist,
		Added:             s.Added,
		Unavailable:       s.Unavailable,
		Checked:           s.Checked,
		Skipped:           s.Skipped,
		InPlaylist:        s.InPlaylist,
		NotFound:          s.NotFound,
		Failures:          make([]failureJSON, 0, len(s.Failures)),
		Interrupted:       s.Interrupted,
		DurationMS:        s.Duration.Milliseconds(),
	}
	if out.NotFound == nil {
		out.NotFound = []models.TrackPair{}
	}
	for _, f := range s.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		out.Failures = append(out.Failures, failureJSON{Index: f.Index, Pair: f.Pair, Error: msg})
	}

	data, err := shared.MarshalJSON(out, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport writes data to path, creating parent directories as needed.
func WriteExport(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
