// Package assemble turns one item URL into a Record by evaluating the
// configured per-field extraction rules against the rendered page.
package assemble

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/storyrake/browser"
	"github.com/use-agent/storyrake/config"
	"github.com/use-agent/storyrake/extract"
	"github.com/use-agent/storyrake/models"
)

// Func is the assembler signature the retry controller drives. A non-nil
// error means the item failed this pass and stays on the work list.
type Func func(ctx context.Context, sess browser.Session, itemURL string, cfg *config.Config) (*models.Record, error)

// Assemble navigates to the item page, waits for the configured ready
// selector, parses the rendered markup once and evaluates every field's
// ordered rule list first-match-wins. Navigation and wait failures are the
// only failure exits; a field with no accepted rule is simply absent.
func Assemble(ctx context.Context, sess browser.Session, itemURL string, cfg *config.Config) (*models.Record, error) {
	// A hanging navigation must abort only this item, never the run.
	navCtx, cancel := context.WithTimeout(ctx, cfg.DetailsTimeout())
	err := sess.Navigate(navCtx, itemURL)
	cancel()
	if err != nil {
		return nil, err
	}
	if err := sess.WaitVisible(ctx, cfg.WaitForElementSelector, cfg.DetailsTimeout()); err != nil {
		return nil, err
	}
	markup, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeNavigation,
			"failed to parse rendered markup", err)
	}

	record := &models.Record{
		URL:    itemURL,
		Fields: make(map[string]string, len(cfg.Fields())),
	}

	for _, field := range cfg.Fields() {
		if field.FromURL != nil {
			if value, ok := field.FromURL.Derive(itemURL); ok {
				record.Fields[field.Name] = value
				record.Points += field.FromURL.Weight
			}
			continue
		}
		if value, weight, ok := evaluateRules(field, doc); ok {
			record.Fields[field.Name] = value
			record.Points += weight
		}
	}

	t := cfg.ConfidenceThresholds
	record.Confidence = models.ScoreConfidence(record.Points, t.High, t.Medium)

	slog.Debug("record assembled",
		"url", itemURL,
		"fields", len(record.Fields),
		"points", record.Points,
		"confidence", record.Confidence,
	)
	return record, nil
}

// evaluateRules walks the field's ordered rule list and stops at the first
// rule that yields an accepted value. Rules encode a preference order from
// most specific to most generic, so first-match-wins, not best-match.
func evaluateRules(field extract.Field, doc *goquery.Document) (string, int, bool) {
	for _, rule := range field.Rules {
		sel := extract.FindRuleNode(doc, rule)
		if sel.Length() == 0 {
			continue
		}
		if value, ok := extract.Apply(rule, sel, doc); ok {
			return value, rule.Weight, true
		}
	}
	return "", 0, false
}
