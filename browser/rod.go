package browser

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/storyrake/config"
	"github.com/use-agent/storyrake/models"
)

// rodSession drives one headless Chromium process via rod.
type rodSession struct {
	browser *rod.Browser
	page    *rod.Page
}

// NewRodFactory returns a Factory launching Chromium with the given
// browser configuration.
func NewRodFactory(cfg config.BrowserConfig) Factory {
	return func(ctx context.Context) (Session, error) {
		return newRodSession(ctx, cfg)
	}
}

// newRodSession launches a browser and opens a single blank tab.
//
// Lifecycle:
//  1. Launch  – headless Chromium with hardening/anti-detection flags
//  2. Connect – attach over the control URL
//  3. Page    – one tab; stealth JS is installed before any navigation
func newRodSession(ctx context.Context, cfg config.BrowserConfig) (Session, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	// ── Anti-detection and hardening flags ──────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("blink-settings"), "imagesEnabled=false")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("window-size"), "1920,1080")
	l.Set(flags.Flag("incognito"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-component-update"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeSessionFailed,
			"failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewRunError(models.ErrCodeSessionFailed,
			"failed to connect to browser", err)
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		return nil, models.NewRunError(models.ErrCodeSessionFailed,
			"failed to open page", err)
	}

	// Stealth JS and headers only take effect for navigations installed
	// before them, so set both up on the fresh page.
	if cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr)
		}
	}
	if cfg.UserAgent != "" {
		headers := proto.NetworkHeaders{"User-Agent": gson.New(cfg.UserAgent)}
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: headers}.Call(page)
	}

	return &rodSession{browser: b, page: page}, nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation failed")
	}
	// Let client-side rendering settle; callers still wait explicitly for
	// their ready selector.
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", err)
	}
	return nil
}

func (s *rodSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(waitCtx)
	el, err := p.Element(selector)
	if err != nil {
		return categorizeError(err, "element "+selector+" not found")
	}
	if err := el.WaitVisible(); err != nil {
		return categorizeError(err, "element "+selector+" not visible")
	}
	return nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to read rendered markup")
	}
	return html, nil
}

func (s *rodSession) Click(ctx context.Context, selector string) error {
	p := s.page.Context(ctx)
	el, err := p.Element(selector)
	if err != nil {
		return categorizeError(err, "element "+selector+" not found")
	}
	if err := el.ScrollIntoView(); err != nil {
		return categorizeError(err, "failed to scroll "+selector+" into view")
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorizeError(err, "failed to click "+selector)
	}
	return nil
}

func (s *rodSession) ClickByScript(ctx context.Context, selector string) error {
	p := s.page.Context(ctx)
	res, err := p.Eval(`(sel) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		el.click();
		return true;
	}`, selector)
	if err != nil {
		return categorizeError(err, "script click failed for "+selector)
	}
	if !res.Value.Bool() {
		return models.NewRunError(models.ErrCodeNavigation,
			"script click found no element for "+selector, nil)
	}
	return nil
}

// Alive probes the page with a trivial evaluation under a short deadline.
func (s *rodSession) Alive() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := s.page.Context(ctx).Eval(`() => 1`)
	return err == nil
}

// Close kills the browser process. Every run exit path goes through here
// (via Manager.Close) to avoid zombie Chromium processes.
func (s *rodSession) Close() {
	if err := s.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
}

// categorizeError wraps raw rod errors into typed RunErrors so callers can
// distinguish timeouts from navigation failures.
func categorizeError(err error, msg string) *models.RunError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewRunError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewRunError(models.ErrCodeTimeout, msg, err)
	default:
		return models.NewRunError(models.ErrCodeNavigation, msg, err)
	}
}
