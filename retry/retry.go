// Package retry drives repeated assembly passes over a shrinking work list
// of item URLs, bounded by the configured maximum pass count.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/storyrake/assemble"
	"github.com/use-agent/storyrake/browser"
	"github.com/use-agent/storyrake/config"
	"github.com/use-agent/storyrake/models"
)

// Defaults for the controller's pacing knobs.
const (
	// DefaultPassPause separates consecutive passes, decoupled from any
	// per-item backoff.
	DefaultPassPause = 5 * time.Second

	// DefaultItemInterval is the fixed pacing between item navigations.
	DefaultItemInterval = 500 * time.Millisecond
)

// Controller runs assembly passes until every URL succeeded or the pass
// budget is spent. It owns session-loss recovery: a dead session is
// replaced through the Manager and the current pass continues.
type Controller struct {
	Manager  *browser.Manager
	Assemble assemble.Func
	Progress func(string)

	// PassPause overrides DefaultPassPause when positive.
	PassPause time.Duration

	// ItemInterval overrides DefaultItemInterval when positive.
	ItemInterval time.Duration
}

// Run assembles records for every URL on the work list across at most
// cfg.MaxRetries passes. It returns the accumulated records and the URLs
// still failing after the final pass.
func (c *Controller) Run(ctx context.Context, urls []string, cfg *config.Config) ([]*models.Record, []string) {
	pause := c.PassPause
	if pause <= 0 {
		pause = DefaultPassPause
	}
	interval := c.ItemInterval
	if interval <= 0 {
		interval = DefaultItemInterval
	}
	pace := rate.NewLimiter(rate.Every(interval), 1)

	work := make([]string, len(urls))
	copy(work, urls)

	var records []*models.Record

	for pass := 1; pass <= cfg.MaxRetries && len(work) > 0; pass++ {
		c.Progress(fmt.Sprintf("--- Scraping Pass %d of %d ---", pass, cfg.MaxRetries))
		c.Progress(fmt.Sprintf("Attempting to scrape %d URLs...", len(work)))

		sess, err := c.Manager.Session(ctx)
		if err != nil {
			c.Progress(fmt.Sprintf("Could not (re)acquire browser session: %v", err))
			return records, work
		}

		var failed []string
		for i, itemURL := range work {
			if err := pace.Wait(ctx); err != nil {
				return records, append(failed, work[i:]...)
			}

			record, err := c.Assemble(ctx, sess, itemURL, cfg)
			if err == nil {
				records = append(records, record)
				continue
			}
			slog.Debug("item failed this pass", "url", itemURL, "error", err)
			failed = append(failed, itemURL)

			// A dead session fails every remaining item; replace it and
			// keep the pass going.
			if !sess.Alive() {
				c.Progress("Browser session lost; acquiring a replacement...")
				replacement, rerr := c.Manager.Session(ctx)
				if rerr != nil {
					c.Progress(fmt.Sprintf("Session replacement failed: %v", rerr))
					return records, append(failed, work[i+1:]...)
				}
				sess = replacement
			}
		}

		work = failed
		if len(work) > 0 && pass < cfg.MaxRetries {
			c.Progress(fmt.Sprintf("%d URLs failed on pass %d. Pausing before retry...",
				len(work), pass))
			if err := sleepCtx(ctx, pause); err != nil {
				break
			}
		}
	}

	if len(work) == 0 {
		c.Progress("All URLs scraped successfully.")
	}
	return records, work
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
