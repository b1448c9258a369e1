// Package browser drives a real browser through playwright and exposes its
// network routing as a mock.Transport.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/funnyzak/pagemock/internal/config"
	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/pkg/mock"
)

// Supported browser engines
const (
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
	EngineWebKit   = "webkit"
)

// Session is a launched browser with a single page under interception.
type Session struct {
	cfg       *config.BrowserConfig
	logger    logger.Logger
	pw        *playwright.Playwright
	browser   playwright.Browser
	page      playwright.Page
	transport *Transport
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context, cfg *config.BrowserConfig) (Browser, error)
}

// Browser is a running session as seen by the server.
type Browser interface {
	Transport() mock.Transport
	Goto(ctx context.Context, url string) error
	Close() error
}

// PlaywrightLauncher launches sessions with playwright.
type PlaywrightLauncher struct {
	Logger logger.Logger
}

// Launch implements Launcher
func (l PlaywrightLauncher) Launch(ctx context.Context, cfg *config.BrowserConfig) (Browser, error) {
	s, err := Launch(ctx, cfg, l.Logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Launch starts playwright, launches the configured engine and opens a page.
func Launch(ctx context.Context, cfg *config.BrowserConfig, log logger.Logger) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("browser config is nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	s := &Session{cfg: cfg, logger: log, pw: pw}

	browserType, err := s.browserType()
	if err != nil {
		s.Close()
		return nil, err
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if cfg.Timeout > 0 {
		opts.Timeout = playwright.Float(millis(cfg.Timeout))
	}

	s.browser, err = browserType.Launch(opts)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not launch %s: %w", cfg.Engine, err)
	}

	s.page, err = s.browser.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	if cfg.Timeout > 0 {
		s.page.SetDefaultTimeout(millis(cfg.Timeout))
	}

	s.transport = NewTransport(s.page, cfg.RoutePattern, log)

	log.Info("Browser launched",
		"engine", cfg.Engine,
		"headless", cfg.Headless,
		"route_pattern", cfg.RoutePattern,
	)
	return s, nil
}

func (s *Session) browserType() (playwright.BrowserType, error) {
	switch strings.ToLower(s.cfg.Engine) {
	case "", EngineChromium:
		return s.pw.Chromium, nil
	case EngineFirefox:
		return s.pw.Firefox, nil
	case EngineWebKit:
		return s.pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unsupported browser engine %q", s.cfg.Engine)
	}
}

// Transport returns the routing transport of the session page.
func (s *Session) Transport() mock.Transport {
	return s.transport
}

// Goto navigates the page to url.
func (s *Session) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := playwright.PageGotoOptions{}
	if deadline, ok := ctx.Deadline(); ok {
		opts.Timeout = playwright.Float(millis(time.Until(deadline)))
	}
	if _, err := s.page.Goto(url, opts); err != nil {
		return fmt.Errorf("could not navigate to %s: %w", url, err)
	}
	s.logger.Info("Page loaded", "url", url)
	return nil
}

// Close shuts down the page, the browser and the playwright driver.
func (s *Session) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil && !IsClosed(err) {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && !IsClosed(err) {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
