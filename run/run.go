// Package run owns one scraping run end to end: it acquires the browser
// session, wires discovery, retrying assembly and export together, and
// reports progress, status and a single terminal completion to its caller.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/use-agent/storyrake/assemble"
	"github.com/use-agent/storyrake/browser"
	"github.com/use-agent/storyrake/config"
	"github.com/use-agent/storyrake/discover"
	"github.com/use-agent/storyrake/export"
	"github.com/use-agent/storyrake/models"
	"github.com/use-agent/storyrake/retry"
)

// Callbacks is how a run talks to its caller. Progress messages are
// append-only and human-readable; Status is a "current phase" string where
// the last call wins; Complete fires exactly once on every exit path.
type Callbacks struct {
	Progress func(string)
	Status   func(string)
	Complete func(success bool, message string, payload []byte, filename string)
}

func (cb *Callbacks) fillNil() {
	if cb.Progress == nil {
		cb.Progress = func(string) {}
	}
	if cb.Status == nil {
		cb.Status = func(string) {}
	}
	if cb.Complete == nil {
		cb.Complete = func(bool, string, []byte, string) {}
	}
}

// Orchestrator performs one run. Runs are sequential within one browser
// session; drive Run from a background goroutine to keep the operator
// surface responsive.
type Orchestrator struct {
	cfg     *config.Config
	factory browser.Factory
}

// New returns an Orchestrator for the given configuration and session
// factory.
func New(cfg *config.Config, factory browser.Factory) *Orchestrator {
	return &Orchestrator{cfg: cfg, factory: factory}
}

// Run executes discovery, retrying assembly and export. It never panics
// out: unexpected faults are converted into a failure completion. The run
// is not cancellable mid-flight beyond context expiry on individual
// operations.
func (o *Orchestrator) Run(ctx context.Context, cb Callbacks) {
	cb.fillNil()

	var once sync.Once
	complete := func(success bool, message string, payload []byte, filename string) {
		once.Do(func() { cb.Complete(success, message, payload, filename) })
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("run panicked", "panic", r)
			complete(false, fmt.Sprintf("Run failed unexpectedly: %v", r), nil, "")
		}
	}()

	mgr := browser.NewManager(o.factory)
	defer mgr.Close()

	cb.Status("Initializing browser session")
	cb.Progress("Scraper starting...")
	sess, err := mgr.Session(ctx)
	if err != nil {
		complete(false, fmt.Sprintf("Could not create a browser session: %v", err), nil, "")
		return
	}

	cb.Status("Discovering story links")
	urls := discover.Discover(ctx, sess, o.cfg, cb.Progress)
	if len(urls) == 0 {
		complete(false, "No story links were found.", nil, "")
		return
	}
	cb.Progress(fmt.Sprintf("Discovered %d story URLs.", len(urls)))

	cb.Status("Scraping story pages")
	cb.Progress("Starting to scrape individual story pages...")
	controller := &retry.Controller{
		Manager:  mgr,
		Assemble: assemble.Assemble,
		Progress: cb.Progress,
	}
	records, stillFailing := controller.Run(ctx, urls, o.cfg)

	if len(stillFailing) > 0 {
		cb.Progress(fmt.Sprintf("Warning: %d URLs failed after %d attempts.",
			len(stillFailing), o.cfg.MaxRetries))
		cb.Progress(fmt.Sprintf("Failed URLs: %v", stillFailing))
	}
	if len(records) == 0 {
		complete(false, "No data was scraped from the individual pages.", nil, "")
		return
	}

	cb.Status("Serializing records")
	cb.Progress(fmt.Sprintf("Scraping complete. Successfully scraped %d out of %d URLs.",
		len(records), len(urls)))
	payload, err := export.Workbook(records, o.outputColumns())
	if err != nil {
		complete(false, fmt.Sprintf("Could not serialize records: %v", err), nil, "")
		return
	}

	cb.Status("Done")
	complete(true,
		fmt.Sprintf("Scraped %d records (%d URLs failed).", len(records), len(stillFailing)),
		payload, export.DefaultFilename)
}

// outputColumns falls back to url plus the configured field order when the
// operator did not request specific columns.
func (o *Orchestrator) outputColumns() []string {
	if len(o.cfg.OutputColumns) > 0 {
		return o.cfg.OutputColumns
	}
	columns := []string{models.ColumnURL}
	for _, f := range o.cfg.Fields() {
		columns = append(columns, f.Name)
	}
	return columns
}
