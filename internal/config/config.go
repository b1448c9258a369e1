package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config application configuration structure
type Config struct {
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Intercept InterceptConfig `yaml:"intercept" mapstructure:"intercept"`
	Mocks     []MockConfig    `yaml:"mocks" mapstructure:"mocks"`
	MocksFile string          `yaml:"mocks_file" mapstructure:"mocks_file"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Journal   JournalConfig   `yaml:"journal" mapstructure:"journal"`
	Web       WebConfig       `yaml:"web" mapstructure:"web"`
}

// BrowserConfig browser session configuration
type BrowserConfig struct {
	Engine   string `yaml:"engine" mapstructure:"engine"`
	Headless bool   `yaml:"headless" mapstructure:"headless"`
	StartURL string `yaml:"start_url" mapstructure:"start_url"`
	// RoutePattern is the playwright glob every request is routed through
	RoutePattern string        `yaml:"route_pattern" mapstructure:"route_pattern"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// InterceptConfig controls how unmatched requests are answered
type InterceptConfig struct {
	Categories   []string   `yaml:"categories" mapstructure:"categories"`
	NotFoundBody string     `yaml:"not_found_body" mapstructure:"not_found_body"`
	CORS         CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig headers attached to every synthetic response
type CORSConfig struct {
	AllowedMethods   []string      `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `yaml:"allowed_headers" mapstructure:"allowed_headers"`
	ExposedHeaders   []string      `yaml:"exposed_headers" mapstructure:"exposed_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age"`
}

// LogConfig log configuration
type LogConfig struct {
	Level       string        `yaml:"level" mapstructure:"level"`
	FileLogging FileLogConfig `yaml:"file_logging" mapstructure:"file_logging"`
}

// FileLogConfig file log configuration
type FileLogConfig struct {
	Enable     bool   `yaml:"enable" mapstructure:"enable"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// OutputConfig controls CLI output style
type OutputConfig struct {
	Mode    string `yaml:"mode" mapstructure:"mode"`
	Silence bool   `yaml:"silence" mapstructure:"silence"`
	// MaxBodyPreview limits the response preview printed per request
	MaxBodyPreview int `yaml:"max_body_preview" mapstructure:"max_body_preview"`
}

// JournalConfig event journal persistence
type JournalConfig struct {
	Enable     bool          `yaml:"enable" mapstructure:"enable"`
	Path       string        `yaml:"path" mapstructure:"path"`
	MaxRecords int           `yaml:"max_records" mapstructure:"max_records"`
	Retention  time.Duration `yaml:"retention" mapstructure:"retention"`
}

// WebConfig web console configuration
type WebConfig struct {
	Enable    bool   `yaml:"enable" mapstructure:"enable"`
	Listen    string `yaml:"listen" mapstructure:"listen"`
	AdminPath string `yaml:"admin_path" mapstructure:"admin_path"`
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("error loading env file %s: %w", file, err)
		}
	}
	return nil
}

// LoadConfig load configuration
// If v is nil, a new viper instance will be created
func LoadConfig(configPath string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix("PAGEMOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("pagemock")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pagemock")
		v.AddConfigPath("/etc/pagemock")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		log.Printf("Config file loaded: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	applyDefaults(&config, v)

	return &config, nil
}

// applyDefaults fills zero-value fields that Unmarshal left empty.
// Command line flags are bound to the viper instance by the caller.
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.Browser.Engine == "" {
		cfg.Browser.Engine = v.GetString("browser.engine")
	}
	cfg.Browser.Engine = strings.ToLower(strings.TrimSpace(cfg.Browser.Engine))
	cfg.Browser.Headless = v.GetBool("browser.headless")
	if cfg.Browser.StartURL == "" {
		cfg.Browser.StartURL = v.GetString("browser.start_url")
	}
	if cfg.Browser.RoutePattern == "" {
		cfg.Browser.RoutePattern = v.GetString("browser.route_pattern")
	}
	if cfg.Browser.Timeout == 0 {
		cfg.Browser.Timeout = v.GetDuration("browser.timeout")
	}

	if len(cfg.Intercept.Categories) == 0 {
		cfg.Intercept.Categories = v.GetStringSlice("intercept.categories")
	}
	cfg.Intercept.Categories = normalizeList(cfg.Intercept.Categories)
	if cfg.Intercept.NotFoundBody == "" {
		cfg.Intercept.NotFoundBody = v.GetString("intercept.not_found_body")
	}
	if len(cfg.Intercept.CORS.AllowedMethods) == 0 {
		cfg.Intercept.CORS.AllowedMethods = v.GetStringSlice("intercept.cors.allowed_methods")
	}
	cfg.Intercept.CORS.AllowCredentials = v.GetBool("intercept.cors.allow_credentials")

	for i := range cfg.Mocks {
		cfg.Mocks[i].normalize()
	}
	if cfg.MocksFile == "" {
		cfg.MocksFile = v.GetString("mocks_file")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = v.GetString("log.level")
	}
	cfg.Log.FileLogging.Enable = v.GetBool("log.file_logging.enable")
	cfg.Log.FileLogging.Compress = v.GetBool("log.file_logging.compress")
	if cfg.Log.FileLogging.Path == "" {
		cfg.Log.FileLogging.Path = v.GetString("log.file_logging.path")
	}
	if cfg.Log.FileLogging.MaxSizeMB == 0 {
		cfg.Log.FileLogging.MaxSizeMB = v.GetInt("log.file_logging.max_size_mb")
	}
	if cfg.Log.FileLogging.MaxBackups == 0 {
		cfg.Log.FileLogging.MaxBackups = v.GetInt("log.file_logging.max_backups")
	}
	if cfg.Log.FileLogging.MaxAgeDays == 0 {
		cfg.Log.FileLogging.MaxAgeDays = v.GetInt("log.file_logging.max_age_days")
	}

	if cfg.Output.Mode == "" {
		cfg.Output.Mode = v.GetString("output.mode")
	}
	cfg.Output.Silence = v.GetBool("output.silence")
	if cfg.Output.MaxBodyPreview == 0 {
		cfg.Output.MaxBodyPreview = v.GetInt("output.max_body_preview")
	}

	cfg.Journal.Enable = v.GetBool("journal.enable")
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = v.GetString("journal.path")
	}
	if cfg.Journal.MaxRecords == 0 {
		cfg.Journal.MaxRecords = v.GetInt("journal.max_records")
	}

	cfg.Web.Enable = v.GetBool("web.enable")
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = v.GetString("web.listen")
	}
	if cfg.Web.AdminPath == "" {
		cfg.Web.AdminPath = v.GetString("web.admin_path")
	}
}

// setDefaults set default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.engine", "chromium")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.start_url", "")
	v.SetDefault("browser.route_pattern", "**/*")
	v.SetDefault("browser.timeout", "30s")

	v.SetDefault("intercept.categories", []string{"fetch", "xhr"})
	v.SetDefault("intercept.not_found_body", "pagemock: no mock registered for this request")
	v.SetDefault("intercept.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"})
	v.SetDefault("intercept.cors.allow_credentials", true)

	v.SetDefault("mocks_file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_logging.enable", false)
	v.SetDefault("log.file_logging.path", "./pagemock.log")
	v.SetDefault("log.file_logging.max_size_mb", 10)
	v.SetDefault("log.file_logging.max_backups", 5)
	v.SetDefault("log.file_logging.max_age_days", 30)
	v.SetDefault("log.file_logging.compress", true)

	v.SetDefault("output.mode", "console")
	v.SetDefault("output.silence", false)
	v.SetDefault("output.max_body_preview", 512)

	v.SetDefault("journal.enable", true)
	v.SetDefault("journal.path", "./data/pagemock.db")
	v.SetDefault("journal.max_records", 10000)
	v.SetDefault("journal.retention", "0s")

	v.SetDefault("web.enable", false)
	v.SetDefault("web.listen", "127.0.0.1:38889")
	v.SetDefault("web.admin_path", "/api")
}

// Validate checks the configuration and normalizes optional fields
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case "chromium", "firefox", "webkit":
	case "":
		c.Browser.Engine = "chromium"
	default:
		return fmt.Errorf("browser engine must be chromium, firefox or webkit")
	}
	if c.Browser.Timeout < 0 {
		return fmt.Errorf("browser timeout cannot be negative")
	}
	if strings.TrimSpace(c.Browser.RoutePattern) == "" {
		c.Browser.RoutePattern = "**/*"
	}

	for i, category := range c.Intercept.Categories {
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("intercept categories[%d] cannot be empty", i)
		}
	}
	if c.Intercept.CORS.MaxAge < 0 {
		return fmt.Errorf("intercept cors max_age cannot be negative")
	}

	for i := range c.Mocks {
		if err := c.Mocks[i].Validate(); err != nil {
			return fmt.Errorf("mock %d: %w", i+1, err)
		}
	}

	switch strings.ToLower(c.Output.Mode) {
	case "", "console", "json":
		if c.Output.Mode == "" {
			c.Output.Mode = "console"
		}
	default:
		return fmt.Errorf("output mode must be 'console' or 'json'")
	}
	if c.Output.MaxBodyPreview < 0 {
		return fmt.Errorf("output max_body_preview cannot be negative")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Log.FileLogging.Enable {
		if c.Log.FileLogging.Path == "" {
			return fmt.Errorf("log file path cannot be empty when file logging is enabled")
		}
		if c.Log.FileLogging.MaxSizeMB < 1 {
			return fmt.Errorf("log file max size must be at least 1MB")
		}
		if c.Log.FileLogging.MaxBackups < 0 {
			return fmt.Errorf("log file max backups cannot be negative")
		}
		if c.Log.FileLogging.MaxAgeDays < 0 {
			return fmt.Errorf("log file max age cannot be negative")
		}
	}

	if c.Journal.Enable && strings.TrimSpace(c.Journal.Path) == "" {
		return fmt.Errorf("journal path cannot be empty")
	}
	if c.Journal.MaxRecords < 0 {
		return fmt.Errorf("journal max_records cannot be negative")
	}
	if c.Journal.Retention < 0 {
		return fmt.Errorf("journal retention cannot be negative")
	}

	if c.Web.Enable {
		if strings.TrimSpace(c.Web.Listen) == "" {
			return fmt.Errorf("web listen address cannot be empty")
		}
		if c.Web.AdminPath == "" {
			return fmt.Errorf("web admin path cannot be empty")
		}
		if !strings.HasPrefix(c.Web.AdminPath, "/") {
			return fmt.Errorf("web admin path must start with '/'")
		}
	}

	return nil
}

func normalizeList(list []string) []string {
	if len(list) == 0 {
		return list
	}
	set := make(map[string]struct{}, len(list))
	result := make([]string, 0, len(list))
	for _, item := range list {
		norm := strings.ToLower(strings.TrimSpace(item))
		if norm == "" {
			continue
		}
		if _, exists := set[norm]; exists {
			continue
		}
		set[norm] = struct{}{}
		result = append(result, norm)
	}
	return result
}
