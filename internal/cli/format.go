package cli

import (
	"encoding/json"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"crmintctl/internal/model"
)

var statusColors = map[model.Status]*color.Color{
	model.StatusIdle:      color.New(color.FgWhite),
	model.StatusWaiting:   color.New(color.FgYellow),
	model.StatusRunning:   color.New(color.FgCyan, color.Bold),
	model.StatusStopping:  color.New(color.FgMagenta),
	model.StatusFinished:  color.New(color.FgGreen),
	model.StatusSucceeded: color.New(color.FgGreen, color.Bold),
	model.StatusFailed:    color.New(color.FgRed, color.Bold),
}

var unknownColor = color.New(color.FgHiBlack)

// glyphs maps icon tokens onto terminal symbols.
var glyphs = map[string]string{
	"clock":                "◷",
	"check-circle-outline": "✔",
	"pause-circle-outline": "⏸",
	"play-circle-outline":  "▶",
	"stop-circle-outline":  "■",
	"close-circle-outline": "✖",
	"help-circle-outline":  "?",
}

func statusColor(s model.Status) *color.Color {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return unknownColor
}

// badge renders a status as "<glyph> <name>" in its color.
func badge(s model.Status) string {
	g, ok := glyphs[s.Icon()]
	if !ok {
		g = "?"
	}
	name := s.String()
	if !s.Known() {
		name = string(model.StatusUnknown)
	}
	return statusColor(s).Sprint(g + " " + name)
}

func okText(ok bool) string {
	if ok {
		return color.GreenString("ok")
	}
	return color.RedString("failed")
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
