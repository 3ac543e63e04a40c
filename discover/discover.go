// Package discover walks the listing page(s) and collects the deduplicated
// set of item URLs, driving pagination or load-more interactions and
// detecting stalls via the first-link fingerprint heuristic.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/storyrake/browser"
	"github.com/use-agent/storyrake/config"
)

// linkDataAttr overrides the native href when present, to support
// JavaScript-driven routing on card elements.
const linkDataAttr = "data-href"

// consentSelectors are common cookie-consent accept controls. Dismissal is
// best-effort: absence of all of them is not an error.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"button[id*='accept']",
	"button[class*='accept']",
	"button[class*='consent']",
	"[aria-label*='accept']",
	".cc-allow",
}

// consentClickTimeout bounds each consent-dismissal attempt.
const consentClickTimeout = 2 * time.Second

// pollInterval is the cadence for re-reading the page while waiting for a
// pagination interaction to take effect.
const pollInterval = 500 * time.Millisecond

// Discover returns the accumulated item URL set as a list. It never fails
// for "ran out of pages": every loop exit returns whatever was collected.
// Only a missing listing container or a first page with zero links
// short-circuits to an empty result.
func Discover(ctx context.Context, sess browser.Session, cfg *config.Config, progress func(string)) []string {
	progress(fmt.Sprintf("Navigating to listing page: %s", cfg.BaseURL))
	navCtx, cancel := context.WithTimeout(ctx, cfg.MainTimeout())
	err := sess.Navigate(navCtx, cfg.BaseURL)
	cancel()
	if err != nil {
		progress(fmt.Sprintf("Could not open listing page: %v", err))
		return nil
	}

	dismissConsent(ctx, sess)

	if err := sess.WaitVisible(ctx, cfg.StoryCardListSelector, cfg.MainTimeout()); err != nil {
		progress("Listing container never appeared; check story_card_list_selector.")
		return nil
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		progress(fmt.Sprintf("Invalid base URL: %v", err))
		return nil
	}

	seen := make(map[string]struct{})
	var ordered []string
	prevFingerprint := ""

	for page := 1; page <= cfg.MaxPages; page++ {
		doc, err := currentDocument(ctx, sess)
		if err != nil {
			progress(fmt.Sprintf("Could not read listing markup: %v", err))
			break
		}

		fingerprint := firstLinkHref(doc, cfg)
		// Load-more keeps the first link in place while the list grows, so
		// the fingerprint only guards the page-number strategy. Known
		// approximation: only the first link is compared.
		if page > 1 && cfg.PaginationType == config.PaginationByPageNumber &&
			fingerprint == prevFingerprint {
			progress(fmt.Sprintf("Page %d repeats the previous content; stopping pagination.", page))
			break
		}
		prevFingerprint = fingerprint

		links, itemCount := collectLinks(doc, cfg, base)
		if page == 1 && len(links) == 0 {
			progress("No item links found on the first page; check story_card_link_selector.")
			return nil
		}
		added := 0
		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			ordered = append(ordered, link)
			added++
		}
		progress(fmt.Sprintf("Page %d: found %d links (%d new, %d total).",
			page, len(links), added, len(ordered)))

		if page == cfg.MaxPages {
			break
		}

		var ok bool
		switch cfg.PaginationType {
		case config.PaginationByPageNumber:
			ok = clickNextPage(ctx, sess, cfg, page+1, fingerprint, progress)
		case config.PaginationLoadMore:
			ok = clickLoadMore(ctx, sess, cfg, itemCount, progress)
		default:
			ok = false
		}
		if !ok {
			break
		}
	}

	slog.Info("link discovery finished", "links", len(ordered))
	return ordered
}

// dismissConsent tries each known consent-accept control with a short
// deadline and stops at the first successful click.
func dismissConsent(ctx context.Context, sess browser.Session) {
	for _, sel := range consentSelectors {
		clickCtx, cancel := context.WithTimeout(ctx, consentClickTimeout)
		err := sess.Click(clickCtx, sel)
		cancel()
		if err == nil {
			slog.Debug("consent overlay dismissed", "selector", sel)
			return
		}
	}
}

// clickNextPage drives the page-number strategy: click the control for the
// next page, then wait for the first-link fingerprint to change and the
// listing container to reappear. A missing or unclickable control ends
// pagination without failing the run.
func clickNextPage(ctx context.Context, sess browser.Session, cfg *config.Config, nextPage int, fingerprint string, progress func(string)) bool {
	selector := cfg.NextPageSelector(nextPage)
	clickCtx, cancel := context.WithTimeout(ctx, cfg.MainTimeout())
	err := sess.Click(clickCtx, selector)
	cancel()
	if err != nil {
		progress(fmt.Sprintf("No control for page %d; assuming end of pages.", nextPage))
		return false
	}

	deadline := time.Now().Add(cfg.MainTimeout())
	for time.Now().Before(deadline) {
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return false
		}
		doc, err := currentDocument(ctx, sess)
		if err != nil {
			continue
		}
		if fp := firstLinkHref(doc, cfg); fp != "" && fp != fingerprint {
			return sess.WaitVisible(ctx, cfg.StoryCardListSelector, cfg.MainTimeout()) == nil
		}
	}
	// Content never changed; let the stall check at the top of the loop
	// terminate pagination.
	return true
}

// clickLoadMore drives the load-more strategy: click the control (falling
// back to a script click when an overlay intercepts it), then wait for the
// item count to grow.
func clickLoadMore(ctx context.Context, sess browser.Session, cfg *config.Config, itemCount int, progress func(string)) bool {
	clickCtx, cancel := context.WithTimeout(ctx, cfg.MainTimeout())
	err := sess.Click(clickCtx, cfg.NextPageButtonSelector)
	cancel()
	if err != nil {
		scriptCtx, scriptCancel := context.WithTimeout(ctx, cfg.MainTimeout())
		err = sess.ClickByScript(scriptCtx, cfg.NextPageButtonSelector)
		scriptCancel()
	}
	if err != nil {
		progress("Load-more control not clickable; assuming end of items.")
		return false
	}

	deadline := time.Now().Add(cfg.MainTimeout())
	for time.Now().Before(deadline) {
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return false
		}
		doc, err := currentDocument(ctx, sess)
		if err != nil {
			continue
		}
		if count := doc.Find(cfg.StoryCardListSelector).Find(cfg.StoryCardLinkSelector).Length(); count > itemCount {
			return true
		}
	}
	progress("Item count did not grow after load-more; stopping.")
	return false
}

// currentDocument reads and parses the rendered listing markup.
func currentDocument(ctx context.Context, sess browser.Session) (*goquery.Document, error) {
	markup, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

// firstLinkHref is the fingerprint of a page's content: the raw link target
// of the first item link in the container.
func firstLinkHref(doc *goquery.Document, cfg *config.Config) string {
	first := doc.Find(cfg.StoryCardListSelector).Find(cfg.StoryCardLinkSelector).First()
	if first.Length() == 0 {
		return ""
	}
	return linkTarget(first)
}

// collectLinks enumerates the item links currently in the container and
// returns their absolute URLs plus the raw element count.
func collectLinks(doc *goquery.Document, cfg *config.Config, base *url.URL) ([]string, int) {
	items := doc.Find(cfg.StoryCardListSelector).Find(cfg.StoryCardLinkSelector)
	var links []string
	items.Each(func(_ int, s *goquery.Selection) {
		target := linkTarget(s)
		if abs, ok := normalizeLink(target, base); ok {
			links = append(links, abs)
		}
	})
	return links, items.Length()
}

// linkTarget prefers the data-attribute override over the native href so
// JavaScript-routed cards still resolve.
func linkTarget(s *goquery.Selection) string {
	if v, ok := s.Attr(linkDataAttr); ok && v != "" {
		return v
	}
	v, _ := s.Attr("href")
	return v
}

// normalizeLink resolves a raw link target to an absolute URL, rejecting
// placeholder anchors and the listing page itself.
func normalizeLink(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "#" || strings.HasPrefix(raw, "javascript:") {
		return "", false
	}
	resolved, err := base.Parse(raw)
	if err != nil {
		return "", false
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	abs := resolved.String()
	if abs == base.String() || strings.TrimSuffix(abs, "/") == strings.TrimSuffix(base.String(), "/") {
		return "", false
	}
	return abs, true
}

// sleepCtx sleeps for d unless the context expires first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
