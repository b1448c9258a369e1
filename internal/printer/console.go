package printer

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/pkg/mock"
	"github.com/funnyzak/pagemock/pkg/request"
)

// ColorScheme color scheme
type ColorScheme struct {
	MethodGET      *color.Color
	MethodPOST     *color.Color
	MethodPUT      *color.Color
	MethodDELETE   *color.Color
	MethodPATCH    *color.Color
	HeaderKey      *color.Color
	HeaderValue    *color.Color
	Separator      *color.Color
	Timestamp      *color.Color
	BodyContent    *color.Color
	TruncateNotice *color.Color
	Matched        *color.Color
	Preflight      *color.Color
	NotFound       *color.Color
	Passthrough    *color.Color
	Failed         *color.Color
}

// NewColorScheme creates a new color scheme
func NewColorScheme() *ColorScheme {
	return &ColorScheme{
		MethodGET:      color.New(color.FgBlue, color.Bold),
		MethodPOST:     color.New(color.FgGreen, color.Bold),
		MethodPUT:      color.New(color.FgYellow, color.Bold),
		MethodDELETE:   color.New(color.FgRed, color.Bold),
		MethodPATCH:    color.New(color.FgMagenta, color.Bold),
		HeaderKey:      color.New(color.FgCyan),
		HeaderValue:    color.New(color.FgWhite),
		Separator:      color.New(color.FgYellow, color.Bold),
		Timestamp:      color.New(color.FgHiBlack),
		BodyContent:    color.New(color.FgWhite),
		TruncateNotice: color.New(color.FgHiYellow, color.Bold),
		Matched:        color.New(color.FgGreen, color.Bold),
		Preflight:      color.New(color.FgHiBlue),
		NotFound:       color.New(color.FgRed, color.Bold),
		Passthrough:    color.New(color.FgHiBlack),
		Failed:         color.New(color.FgHiRed, color.Bold, color.Underline),
	}
}

// ConsolePrinter prints one coloured block per event
type ConsolePrinter struct {
	mu          sync.Mutex
	out         io.Writer
	colorScheme *ColorScheme
	logger      logger.Logger
	maxPreview  int
}

// NewConsolePrinter creates a new console printer
func NewConsolePrinter(log logger.Logger, maxPreview int) *ConsolePrinter {
	return &ConsolePrinter{
		out:         os.Stdout,
		colorScheme: NewColorScheme(),
		logger:      log,
		maxPreview:  maxPreview,
	}
}

// SetOutput replaces the output target
func (p *ConsolePrinter) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	p.mu.Lock()
	p.out = w
	p.mu.Unlock()
}

// getTerminalWidth gets the current terminal width with fallback
func (p *ConsolePrinter) getTerminalWidth() int {
	if testWidth := os.Getenv("PAGEMOCK_TEST_WIDTH"); testWidth != "" {
		if width, err := strconv.Atoi(testWidth); err == nil {
			return clampWidth(width)
		}
	}

	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return clampWidth(width)
}

func clampWidth(width int) int {
	if width < 40 {
		return 40
	}
	if width > 150 {
		return 150
	}
	return width
}

// wrapText wraps text to fit within the specified display width, preserving words
func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	currentLine := words[0]
	currentWidth := runewidth.StringWidth(currentLine)

	for _, word := range words[1:] {
		wordWidth := runewidth.StringWidth(word)
		if currentWidth+1+wordWidth > maxWidth {
			lines = append(lines, currentLine)
			currentLine = word
			currentWidth = wordWidth
			continue
		}
		currentLine += " " + word
		currentWidth += 1 + wordWidth
	}
	return append(lines, currentLine)
}

// PrintEvent implements Printer
func (p *ConsolePrinter) PrintEvent(ev mock.Event) error {
	num := nextEventNumber()
	width := p.getTerminalWidth()

	p.mu.Lock()
	defer p.mu.Unlock()

	separator := strings.Repeat("-", width)
	p.colorScheme.Separator.Fprintln(p.out, separator)
	p.colorScheme.Separator.Fprintf(p.out, "Request #%d  ", num)
	p.colorScheme.Timestamp.Fprintln(p.out, ev.Timestamp.Format("2006-01-02T15:04:05-07:00"))
	p.printOutcomeLine(ev)
	p.colorScheme.Separator.Fprintln(p.out, separator)

	req := ev.Request
	if req == nil {
		fmt.Fprintln(p.out)
		return nil
	}

	p.printRequestLine(req, width)
	p.printHeaders(req.Headers, width)
	if len(req.Body) > 0 {
		fmt.Fprintln(p.out)
		p.printBody(req)
	}
	fmt.Fprintln(p.out)
	return nil
}

func (p *ConsolePrinter) printOutcomeLine(ev mock.Event) {
	p.outcomeColor(ev.Outcome).Fprint(p.out, strings.ToUpper(string(ev.Outcome)))

	if ev.Status != 0 {
		fmt.Fprintf(p.out, " | Status: %d %s", ev.Status, http.StatusText(ev.Status))
	}
	if ev.MockName != "" {
		fmt.Fprint(p.out, " | Mock: ")
		p.colorScheme.HeaderValue.Fprint(p.out, ev.MockName)
	}
	if ev.Outcome != mock.OutcomePassthrough {
		fmt.Fprintf(p.out, " | Size: %s", humanize.Bytes(uint64(ev.ResponseSize)))
	}
	fmt.Fprintf(p.out, " | Took: %s", ev.Duration.Round(time.Microsecond))
	fmt.Fprintln(p.out)

	if ev.Error != "" {
		p.colorScheme.Failed.Fprint(p.out, "Error:")
		fmt.Fprintln(p.out, " "+ev.Error)
	}
}

func (p *ConsolePrinter) printRequestLine(req *request.Request, width int) {
	method := strings.ToUpper(req.Method)
	p.getMethodColor(method).Fprintf(p.out, "%s ", method)

	lines := wrapText(req.URL, width-runewidth.StringWidth(method)-1)
	fmt.Fprint(p.out, lines[0])
	p.colorScheme.Timestamp.Fprintf(p.out, " (%s)\n", req.ResourceType)
	for _, line := range lines[1:] {
		fmt.Fprintln(p.out, line)
	}
}

func (p *ConsolePrinter) printHeaders(headers map[string]string, width int) {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := headers[key]
		if isSensitiveHeader(key) {
			value = "[REDACTED]"
		}
		p.printHeaderLine(key, value, width)
	}
}

func (p *ConsolePrinter) printHeaderLine(key, value string, width int) {
	prefix := key + ": "
	available := width - runewidth.StringWidth(prefix)
	if available < 20 {
		available = 20
	}

	wrapped := wrapText(value, available)
	p.colorScheme.HeaderKey.Fprint(p.out, prefix)
	p.colorScheme.HeaderValue.Fprintln(p.out, wrapped[0])

	indent := strings.Repeat(" ", runewidth.StringWidth(prefix))
	for _, line := range wrapped[1:] {
		fmt.Fprint(p.out, indent)
		p.colorScheme.HeaderValue.Fprintln(p.out, line)
	}
}

func (p *ConsolePrinter) printBody(req *request.Request) {
	size := humanize.Bytes(uint64(len(req.Body)))
	if req.IsBinary() {
		p.colorScheme.TruncateNotice.Fprintf(p.out, "[Binary Body: %s, %s. Content skipped.]\n", req.ContentType(), size)
		return
	}

	body := string(req.Body)
	truncated := false
	if p.maxPreview > 0 && len(body) > p.maxPreview {
		body = runewidth.Truncate(body, p.maxPreview, "")
		truncated = true
	}
	for _, line := range strings.Split(body, "\n") {
		p.colorScheme.BodyContent.Fprintln(p.out, strings.TrimRight(line, "\r"))
	}
	if truncated {
		p.colorScheme.TruncateNotice.Fprintf(p.out, "[Body truncated, %s total]\n", size)
	}
}

func (p *ConsolePrinter) outcomeColor(outcome mock.Outcome) *color.Color {
	switch outcome {
	case mock.OutcomeMatched:
		return p.colorScheme.Matched
	case mock.OutcomePreflight:
		return p.colorScheme.Preflight
	case mock.OutcomeNotFound:
		return p.colorScheme.NotFound
	case mock.OutcomePassthrough:
		return p.colorScheme.Passthrough
	default:
		return p.colorScheme.Failed
	}
}

// getMethodColor gets the corresponding color based on HTTP method
func (p *ConsolePrinter) getMethodColor(method string) *color.Color {
	switch method {
	case "GET":
		return p.colorScheme.MethodGET
	case "POST":
		return p.colorScheme.MethodPOST
	case "PUT":
		return p.colorScheme.MethodPUT
	case "DELETE":
		return p.colorScheme.MethodDELETE
	case "PATCH":
		return p.colorScheme.MethodPATCH
	default:
		return color.New(color.FgWhite, color.Bold)
	}
}

var sensitiveHeaders = map[string]bool{
	"authorization":   true,
	"cookie":          true,
	"set-cookie":      true,
	"x-api-key":       true,
	"x-auth-token":    true,
	"x-csrf-token":    true,
	"x-session-token": true,
}

func isSensitiveHeader(key string) bool {
	return sensitiveHeaders[strings.ToLower(key)]
}
