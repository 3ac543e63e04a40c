package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"github.com/use-agent/storyrake/extract"
	"github.com/use-agent/storyrake/models"
)

// Pagination strategies for the link discovery loop.
const (
	PaginationNone         = "none"
	PaginationByPageNumber = "click_button_by_page_number"
	PaginationLoadMore     = "click_load_more"
)

// PagePlaceholder is the token in NextPageButtonSelector that gets replaced
// with the target page number for the page-number strategy.
const PagePlaceholder = "{page}"

// Config is the complete, immutable description of one scraping run.
// It is read once per run and never mutated afterwards.
type Config struct {
	// BaseURL is the listing page enumerating links to individual items.
	BaseURL string `yaml:"base_url"`

	// MaxPages bounds how many pages (or load-more interactions) discovery
	// will traverse.
	MaxPages int `yaml:"max_pages_to_scrape"`

	// PaginationType selects the discovery strategy: none,
	// click_button_by_page_number or click_load_more.
	PaginationType string `yaml:"pagination_type"`

	// NextPageButtonSelector locates the pagination control. For the
	// page-number strategy it must contain the {page} placeholder.
	NextPageButtonSelector string `yaml:"next_page_button_selector"`

	// StoryCardListSelector matches the container holding the item cards.
	StoryCardListSelector string `yaml:"story_card_list_selector"`

	// StoryCardLinkSelector matches the item links inside the container.
	StoryCardLinkSelector string `yaml:"story_card_link_selector"`

	// WaitForElementSelector is the "page is ready" marker on item pages.
	WaitForElementSelector string `yaml:"wait_for_element_selector"`

	// DetailsPageLoadTimeout bounds one item page navigation+wait, in seconds.
	DetailsPageLoadTimeout int `yaml:"details_page_load_timeout"`

	// MainWaitTimeout bounds element waits on the listing page, in seconds.
	MainWaitTimeout int `yaml:"main_wait_timeout"`

	// MaxRetries is the number of assembly passes over the work list.
	MaxRetries int `yaml:"max_retries"`

	// DataSelectors maps each field name to its extraction spec,
	// preserving configuration order.
	DataSelectors FieldSpecs `yaml:"data_selectors"`

	// ConfidenceThresholds holds the two scoring cutoffs.
	ConfidenceThresholds Thresholds `yaml:"confidence_thresholds"`

	// OutputColumns is the requested column order of the exported sheet.
	OutputColumns []string `yaml:"output_columns"`

	// Browser holds ambient browser knobs, overridable via environment.
	Browser BrowserConfig `yaml:"browser"`

	// Log controls structured logging.
	Log LogConfig `yaml:"log"`

	// fields keeps DataSelectors in a deterministic resolved form.
	fields []extract.Field
}

// Thresholds are the confidence cutoffs: points >= High scores High,
// points >= Medium scores Medium, anything lower scores Low.
type Thresholds struct {
	High   int `yaml:"high"`
	Medium int `yaml:"medium"`
}

// BrowserConfig controls the rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless. Default: true.
	Headless bool

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth toggles stealth JS injection before navigation. Default: true.
	Stealth bool

	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string

	// decoded records that a browser block was present in the file, so
	// Defaults only applies the true defaults when the knobs were absent.
	decoded bool
}

// UnmarshalYAML keeps an explicit `headless: false` / `stealth: false`
// distinguishable from the knob being absent (which defaults to true).
func (b *BrowserConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Headless   *bool  `yaml:"headless"`
		NoSandbox  bool   `yaml:"no_sandbox"`
		BrowserBin string `yaml:"browser_bin"`
		Stealth    *bool  `yaml:"stealth"`
		UserAgent  string `yaml:"user_agent"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	b.Headless = raw.Headless == nil || *raw.Headless
	b.NoSandbox = raw.NoSandbox
	b.BrowserBin = raw.BrowserBin
	b.Stealth = raw.Stealth == nil || *raw.Stealth
	b.UserAgent = raw.UserAgent
	b.decoded = true
	return nil
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "text"
}

// FieldSpec is the YAML shape of one field's extraction spec: either an
// ordered rule list or a URL-derivation pattern. Validate resolves it into
// the tagged extract.Field form exactly once.
type FieldSpec struct {
	// Source distinguishes the two shapes: "" or "markup" for rule lists,
	// "url" for URL derivation.
	Source string `yaml:"source"`

	// Pattern is the URL-derivation regexp (source: url). Its first capture
	// group becomes the field value.
	Pattern string `yaml:"pattern"`

	// Weight is the confidence weight of a URL-derivation match.
	Weight int `yaml:"weight"`

	// Rules is the ordered markup rule list (source: markup).
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is the YAML shape of one markup extraction rule.
type RuleSpec struct {
	Selector  string `yaml:"selector"`
	Method    string `yaml:"method"`
	Label     string `yaml:"label"`
	Weight    int    `yaml:"weight"`
	MinLength int    `yaml:"min_length"`
}

// Defaults fills unset values. Call it before Validate.
func (c *Config) Defaults() {
	if c.MaxPages < 1 {
		c.MaxPages = 1
	}
	if c.PaginationType == "" {
		c.PaginationType = PaginationNone
	}
	if c.WaitForElementSelector == "" {
		c.WaitForElementSelector = "body"
	}
	if c.DetailsPageLoadTimeout <= 0 {
		c.DetailsPageLoadTimeout = 15
	}
	if c.MainWaitTimeout <= 0 {
		c.MainWaitTimeout = 10
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.ConfidenceThresholds.High <= 0 {
		c.ConfidenceThresholds.High = 7
	}
	if c.ConfidenceThresholds.Medium <= 0 {
		c.ConfidenceThresholds.Medium = 4
	}
	if c.Log.Level == "" {
		c.Log.Level = envOr("STORYRAKE_LOG_LEVEL", "info")
	}
	if c.Log.Format == "" {
		c.Log.Format = envOr("STORYRAKE_LOG_FORMAT", "text")
	}

	// Headless and stealth default to true when no browser block was in
	// the file; the environment wins over the file so operators can flip
	// them without editing the run configuration.
	if !c.Browser.decoded {
		c.Browser.Headless = true
		c.Browser.Stealth = true
	}
	c.Browser.Headless = envBoolOr("STORYRAKE_HEADLESS", c.Browser.Headless)
	c.Browser.NoSandbox = envBoolOr("STORYRAKE_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.Stealth = envBoolOr("STORYRAKE_STEALTH", c.Browser.Stealth)
	if bin := os.Getenv("STORYRAKE_BROWSER_BIN"); bin != "" {
		c.Browser.BrowserBin = bin
	}
	if ua := os.Getenv("STORYRAKE_USER_AGENT"); ua != "" {
		c.Browser.UserAgent = ua
	}
}

// Validate checks every field the engine reads and resolves DataSelectors
// into the tagged rule form. Unknown extraction method names, malformed CSS
// selectors and malformed URL patterns are rejected here, not at scrape time.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return models.NewRunError(models.ErrCodeInvalidConfig, "base_url is required", nil)
	}
	switch c.PaginationType {
	case PaginationNone, PaginationByPageNumber, PaginationLoadMore:
	default:
		return models.NewRunError(models.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown pagination_type %q", c.PaginationType), nil)
	}
	if c.PaginationType != PaginationNone && c.NextPageButtonSelector == "" {
		return models.NewRunError(models.ErrCodeInvalidConfig,
			"next_page_button_selector is required for the configured pagination_type", nil)
	}
	if c.PaginationType == PaginationByPageNumber &&
		!strings.Contains(c.NextPageButtonSelector, PagePlaceholder) {
		return models.NewRunError(models.ErrCodeInvalidConfig,
			"next_page_button_selector must contain the "+PagePlaceholder+" placeholder", nil)
	}
	if c.StoryCardListSelector == "" || c.StoryCardLinkSelector == "" {
		return models.NewRunError(models.ErrCodeInvalidConfig,
			"story_card_list_selector and story_card_link_selector are required", nil)
	}
	if c.ConfidenceThresholds.Medium > c.ConfidenceThresholds.High {
		return models.NewRunError(models.ErrCodeInvalidConfig,
			"confidence_thresholds.medium must not exceed confidence_thresholds.high", nil)
	}

	for _, sel := range []string{
		c.StoryCardListSelector,
		c.StoryCardLinkSelector,
		c.WaitForElementSelector,
	} {
		if _, err := cascadia.Parse(sel); err != nil {
			return models.NewRunError(models.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid CSS selector %q", sel), err)
		}
	}
	if c.PaginationType == PaginationByPageNumber {
		probe := strings.ReplaceAll(c.NextPageButtonSelector, PagePlaceholder, "2")
		if _, err := cascadia.Parse(probe); err != nil {
			return models.NewRunError(models.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid next_page_button_selector %q", c.NextPageButtonSelector), err)
		}
	} else if c.NextPageButtonSelector != "" {
		if _, err := cascadia.Parse(c.NextPageButtonSelector); err != nil {
			return models.NewRunError(models.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid next_page_button_selector %q", c.NextPageButtonSelector), err)
		}
	}

	fields, err := resolveFields(c.DataSelectors)
	if err != nil {
		return err
	}
	c.fields = fields
	return nil
}

// Fields returns the resolved per-field rule lists in a stable order.
// Validate must have succeeded first.
func (c *Config) Fields() []extract.Field {
	return c.fields
}

// NextPageSelector renders the pagination selector for a page number.
func (c *Config) NextPageSelector(page int) string {
	return strings.ReplaceAll(c.NextPageButtonSelector, PagePlaceholder, strconv.Itoa(page))
}

// DetailsTimeout returns the per-item navigation+wait deadline.
func (c *Config) DetailsTimeout() time.Duration {
	return time.Duration(c.DetailsPageLoadTimeout) * time.Second
}

// MainTimeout returns the listing-page element wait deadline.
func (c *Config) MainTimeout() time.Duration {
	return time.Duration(c.MainWaitTimeout) * time.Second
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
