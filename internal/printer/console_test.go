package printer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/funnyzak/pagemock/internal/config"
	"github.com/funnyzak/pagemock/pkg/mock"
	"github.com/funnyzak/pagemock/pkg/request"
)

func init() {
	color.NoColor = true
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

func sampleEvent() mock.Event {
	req := request.New("POST", "https://api.test/users", map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer secret",
	}, []byte(`{"name":"ada"}`), request.TypeFetch)
	return mock.Event{
		ID:           req.ID,
		Timestamp:    time.Now(),
		Request:      req,
		Outcome:      mock.OutcomeMatched,
		MockName:     "create user",
		Status:       201,
		ResponseSize: 2048,
		Duration:     3 * time.Millisecond,
	}
}

func TestConsolePrinter_PrintEvent(t *testing.T) {
	t.Setenv("PAGEMOCK_TEST_WIDTH", "80")
	p := NewConsolePrinter(noopLogger{}, 0)
	buf := &bytes.Buffer{}
	p.SetOutput(buf)

	if err := p.PrintEvent(sampleEvent()); err != nil {
		t.Fatalf("print event failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Request #",
		"MATCHED",
		"Status: 201 Created",
		"Mock: create user",
		"Size: 2.0 kB",
		"POST https://api.test/users (fetch)",
		"content-type: application/json",
		`{"name":"ada"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Errorf("sensitive header should be redacted:\n%s", out)
	}
	if !strings.Contains(out, strings.Repeat("-", 80)) {
		t.Errorf("separator should follow terminal width")
	}
}

func TestConsolePrinter_Failure(t *testing.T) {
	t.Setenv("PAGEMOCK_TEST_WIDTH", "60")
	p := NewConsolePrinter(noopLogger{}, 0)
	buf := &bytes.Buffer{}
	p.SetOutput(buf)

	ev := sampleEvent()
	ev.Outcome = mock.OutcomeFailed
	ev.Error = errors.New("target closed").Error()
	if err := p.PrintEvent(ev); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "FAILED") || !strings.Contains(buf.String(), "Error: target closed") {
		t.Errorf("failure not rendered:\n%s", buf.String())
	}
}

func TestConsolePrinter_TruncatesBody(t *testing.T) {
	t.Setenv("PAGEMOCK_TEST_WIDTH", "80")
	p := NewConsolePrinter(noopLogger{}, 4)
	buf := &bytes.Buffer{}
	p.SetOutput(buf)

	ev := sampleEvent()
	ev.Request.Body = []byte("abcdefgh")
	ev.Request.Headers = map[string]string{"content-type": "text/plain"}
	if err := p.PrintEvent(ev); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "abcdefgh") || !strings.Contains(buf.String(), "[Body truncated") {
		t.Errorf("body not truncated:\n%s", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{name: "fits", text: "a b c", width: 10, want: []string{"a b c"}},
		{name: "wraps", text: "alpha beta gamma", width: 10, want: []string{"alpha beta", "gamma"}},
		{name: "wide runes", text: "数据 数据 数据", width: 9, want: []string{"数据 数据", "数据"}},
		{name: "empty", text: "", width: 10, want: []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.text, tt.width)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("wrapText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJSONPrinter_PrintEvent(t *testing.T) {
	p := NewJSONPrinter(noopLogger{})
	buf := &bytes.Buffer{}
	p.SetOutput(buf)

	if err := p.PrintEvent(sampleEvent()); err != nil {
		t.Fatalf("print event failed: %v", err)
	}

	var env map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if env["type"] != "event" || env["body_text"] != `{"name":"ada"}` {
		t.Errorf("unexpected envelope %v", env)
	}
	event, ok := env["event"].(map[string]interface{})
	if !ok || event["outcome"] != "matched" || event["mock_name"] != "create user" {
		t.Errorf("unexpected event %v", env["event"])
	}
}

func TestNewSelectsMode(t *testing.T) {
	if _, ok := New(noopLogger{}, &config.OutputConfig{Mode: "json"}).(*JSONPrinter); !ok {
		t.Error("json mode should create JSONPrinter")
	}
	if _, ok := New(noopLogger{}, nil).(*ConsolePrinter); !ok {
		t.Error("default mode should create ConsolePrinter")
	}
}
