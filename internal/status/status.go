// Package status renders human-readable summaries of a replay run.
package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/zsiec/udpreplay/internal/config"
	"github.com/zsiec/udpreplay/internal/replay"
	"github.com/zsiec/udpreplay/pkg/version"
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), ValueStyle.Render(value))
}

// EscapeDelimiter shows control characters as escapes so the banner stays on
// one line.
func EscapeDelimiter(d string) string {
	switch d {
	case "\t":
		return `\t`
	case "\n":
		return `\n`
	}
	return d
}

// RenderConfig describes the destination and the source layout.
func RenderConfig(cfg *config.Config, path string) string {
	length := "dynamic"
	if !cfg.Data.DynamicLength() {
		length = strconv.Itoa(cfg.Data.Length)
	}

	lines := []string{
		TitleStyle.Render(version.GetInfo().Short()),
		"",
		SectionStyle.Render("SOCKET"),
		row("endpoint", cfg.Socket.Endpoint()),
		row("frequency", fmt.Sprintf("%gHz", cfg.Socket.Frequency)),
		"",
		SectionStyle.Render("DATA"),
		row("file", cfg.Data.Path),
		row("elements", fmt.Sprintf("vector of %s of %s elements", cfg.Data.Type, length)),
		row("delimiter", `"`+EscapeDelimiter(cfg.Data.Delimiter)+`"`),
		row("header", fmt.Sprintf("%d initial lines to skip", cfg.Data.Header)),
	}
	if path != "" {
		lines = append(lines, "", row("config", path))
	}
	return PanelStyle.Render(strings.Join(lines, "\n"))
}

// RenderStats summarizes a finished run. err is the error Run returned, if
// any.
func RenderStats(stats replay.Stats, err error) string {
	var outcome string
	switch {
	case err == nil:
		outcome = SuccessStyle.Render("All data sent")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = WarningStyle.Render("Interrupted")
	default:
		outcome = ErrorStyle.Render("Failed: " + err.Error())
	}

	lines := []string{
		outcome,
		"",
		row("records", strconv.FormatUint(stats.Records, 10)),
		row("sent", fmt.Sprintf("%d (%s)", stats.Sent, humanize.IBytes(stats.Bytes))),
		row("skipped", strconv.FormatUint(stats.Skipped, 10)),
		row("send errors", strconv.FormatUint(stats.SendErrors, 10)),
		row("overruns", strconv.FormatUint(stats.Overruns, 10)),
		row("elapsed", stats.Elapsed.Round(time.Millisecond).String()),
		row("avg rate", fmt.Sprintf("%.3fHz", stats.AverageFrequency())),
	}
	return PanelStyle.Render(strings.Join(lines, "\n"))
}
