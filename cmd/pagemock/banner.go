package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/funnyzak/pagemock/internal/config"
)

const minBoxWidth = 50

func bannerLines(cfg *config.Config) []string {
	var lines []string

	startURL := cfg.Browser.StartURL
	if startURL == "" {
		startURL = "(none, blank page)"
	}
	headless := "headless"
	if !cfg.Browser.Headless {
		headless = "headed"
	}
	lines = append(lines, fmt.Sprintf("🌐 Browser:        %s (%s)", cfg.Browser.Engine, headless))
	lines = append(lines, fmt.Sprintf("🚀 Start URL:      %s", startURL))
	lines = append(lines, fmt.Sprintf("🎯 Route Pattern:  %s", cfg.Browser.RoutePattern))
	lines = append(lines, fmt.Sprintf("🧩 404 Fallback:   %s", strings.Join(cfg.Intercept.Categories, ", ")))
	lines = append(lines, fmt.Sprintf("📦 Inline Mocks:   %d", len(cfg.Mocks)))
	if cfg.MocksFile != "" {
		lines = append(lines, fmt.Sprintf("   └─ File:       %s", cfg.MocksFile))
	}
	lines = append(lines, fmt.Sprintf("📊 Log Level:      %s", cfg.Log.Level))

	lines = append(lines, "")
	if cfg.Journal.Enable {
		lines = append(lines, fmt.Sprintf("💾 Journal:        %s", cfg.Journal.Path))
	} else {
		lines = append(lines, "💾 Journal:        Disabled")
	}
	if cfg.Web.Enable {
		lines = append(lines, fmt.Sprintf("🖥️ Web Console:    http://%s%s", cfg.Web.Listen, cfg.Web.AdminPath))
	} else {
		lines = append(lines, "🖥️ Web Console:    Disabled")
	}
	if cfg.Log.FileLogging.Enable {
		lines = append(lines, fmt.Sprintf("📝 File Logging:   %s (%dMB, %d backups)",
			cfg.Log.FileLogging.Path,
			cfg.Log.FileLogging.MaxSizeMB,
			cfg.Log.FileLogging.MaxBackups))
	}

	lines = append(lines, "", "(Press Ctrl+C to stop)")
	return lines
}

func printStartupBanner(w io.Writer, cfg *config.Config) {
	title := fmt.Sprintf("PageMock v%s", version)
	subtitle := "Browser Request Mocking"
	lines := bannerLines(cfg)

	maxLength := runewidth.StringWidth(subtitle)
	for _, line := range append(lines, title) {
		if width := runewidth.StringWidth(line); width > maxLength {
			maxLength = width
		}
	}
	boxWidth := maxLength + 4
	if boxWidth < minBoxWidth {
		boxWidth = minBoxWidth
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
	printBoxContent(w, title, boxWidth, true)
	printBoxContent(w, subtitle, boxWidth, true)
	fmt.Fprintf(w, "├%s┤\n", strings.Repeat("─", boxWidth-2))
	for _, line := range lines {
		printBoxContent(w, line, boxWidth, false)
	}
	fmt.Fprintf(w, "└%s┘\n", strings.Repeat("─", boxWidth-2))
	fmt.Fprintln(w)
}

// printBoxContent prints one line padded to the inner width of the box
func printBoxContent(w io.Writer, content string, boxWidth int, center bool) {
	padding := boxWidth - 2 - runewidth.StringWidth(content)
	if padding < 0 {
		padding = 0
	}

	var leftPad, rightPad string
	if center {
		leftPad = strings.Repeat(" ", padding/2)
		rightPad = strings.Repeat(" ", padding-padding/2)
	} else {
		leftPad = "  "
		right := padding - 2
		if right < 0 {
			right = 0
		}
		rightPad = strings.Repeat(" ", right)
	}
	fmt.Fprintf(w, "│%s%s%s│\n", leftPad, content, rightPad)
}
