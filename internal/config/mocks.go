package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"

	"github.com/funnyzak/pagemock/pkg/matcher"
	"github.com/funnyzak/pagemock/pkg/mock"
)

// MockConfig declares a mock registered at startup
type MockConfig struct {
	Name     string            `yaml:"name" mapstructure:"name" json:"name,omitempty"`
	Method   string            `yaml:"method" mapstructure:"method" json:"method,omitempty"`
	Pattern  string            `yaml:"pattern" mapstructure:"pattern" json:"pattern"`
	Status   int               `yaml:"status" mapstructure:"status" json:"status,omitempty"`
	Headers  map[string]string `yaml:"headers" mapstructure:"headers" json:"headers,omitempty"`
	Body     string            `yaml:"body" mapstructure:"body" json:"body,omitempty"`
	JSON     interface{}       `yaml:"json" mapstructure:"json" json:"json,omitempty"`
	Priority int               `yaml:"priority" mapstructure:"priority" json:"priority,omitempty"`
	Times    int               `yaml:"times" mapstructure:"times" json:"times,omitempty"`
}

// mocksFile is the layout of a standalone mocks file
type mocksFile struct {
	Mocks []MockConfig `yaml:"mocks"`
}

func (m *MockConfig) normalize() {
	m.Method = strings.ToUpper(strings.TrimSpace(m.Method))
	if m.Method == "" {
		m.Method = http.MethodGet
	}
	m.Pattern = strings.TrimSpace(m.Pattern)
}

// Validate checks a single mock declaration and compiles its pattern
func (m *MockConfig) Validate() error {
	m.normalize()
	if m.Pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if m.Method != matcher.AnyMethod && !httpguts.ValidHeaderFieldName(m.Method) {
		return fmt.Errorf("invalid method %q", m.Method)
	}
	if m.Status != 0 && (m.Status < 100 || m.Status > 599) {
		return fmt.Errorf("status must be between 100 and 599")
	}
	if m.Body != "" && m.JSON != nil {
		return fmt.Errorf("body and json cannot both be set")
	}
	if m.Times < 0 {
		return fmt.Errorf("times cannot be negative")
	}
	for name, value := range m.Headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("invalid header name %q", name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("invalid value for header %q", name)
		}
	}
	if _, err := matcher.New(m.Pattern, m.Method); err != nil {
		return err
	}
	return nil
}

// Response builds the response template of the mock
func (m MockConfig) Response() mock.Response {
	resp := mock.Response{
		Status:  m.Status,
		Headers: m.Headers,
	}
	switch {
	case m.JSON != nil:
		resp.Body = mock.JSON(jsonCompatible(m.JSON))
	case m.Body != "":
		resp.Body = mock.Text(m.Body)
	}
	return resp
}

// Options returns the registration options of the mock
func (m MockConfig) Options() []mock.Option {
	opts := []mock.Option{mock.WithPriority(m.Priority), mock.WithTimes(m.Times)}
	if m.Name != "" {
		opts = append(opts, mock.WithName(m.Name))
	}
	return opts
}

// Register adds the mock to an interceptor and returns its handle
func (m MockConfig) Register(ic *mock.Interceptor) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	return ic.Add(m.Pattern, m.Method, m.Response(), m.Options()...)
}

// LoadMocksFile reads a YAML file holding a top-level mocks list.
// Unknown fields are rejected.
func LoadMocksFile(path string) ([]MockConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading mocks file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file mocksFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error decoding mocks file %s: %w", path, err)
	}
	for i := range file.Mocks {
		if err := file.Mocks[i].Validate(); err != nil {
			return nil, fmt.Errorf("mocks file %s: mock %d: %w", path, i+1, err)
		}
	}
	return file.Mocks, nil
}

// AllMocks returns the inline mocks followed by those of the mocks file
func (c *Config) AllMocks() ([]MockConfig, error) {
	mocks := make([]MockConfig, 0, len(c.Mocks))
	mocks = append(mocks, c.Mocks...)
	if strings.TrimSpace(c.MocksFile) == "" {
		return mocks, nil
	}
	fromFile, err := LoadMocksFile(c.MocksFile)
	if err != nil {
		return nil, err
	}
	return append(mocks, fromFile...), nil
}

// jsonCompatible converts map[interface{}]interface{} values produced by some
// decoders into string-keyed maps accepted by encoding/json.
func jsonCompatible(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = jsonCompatible(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = jsonCompatible(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = jsonCompatible(item)
		}
		return out
	default:
		return v
	}
}
