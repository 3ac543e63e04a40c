package discover

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/use-agent/storyrake/config"
)

// fakeSession serves a sequence of listing-page snapshots; clicks on the
// pagination control advance to the next snapshot.
type fakeSession struct {
	states     []string
	idx        int
	advanceOn  string // selector whose click moves to the next state
	clickErr   error
	scriptOnly bool // direct clicks fail; only script clicks advance
	waitErr    error
	navErr     error
	navBlock   bool // Navigate hangs until the context expires
	clicked    []string
}

func (f *fakeSession) Navigate(ctx context.Context, _ string) error {
	if f.navBlock {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.navErr
}

func (f *fakeSession) WaitVisible(context.Context, string, time.Duration) error {
	return f.waitErr
}

func (f *fakeSession) HTML(context.Context) (string, error) {
	return f.states[f.idx], nil
}

func (f *fakeSession) Click(_ context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	if f.clickErr != nil {
		return f.clickErr
	}
	if f.scriptOnly {
		return errors.New("click intercepted by overlay")
	}
	f.advance(selector)
	return nil
}

func (f *fakeSession) ClickByScript(_ context.Context, selector string) error {
	f.advance(selector)
	return nil
}

func (f *fakeSession) advance(selector string) {
	if selector == f.advanceOn && f.idx < len(f.states)-1 {
		f.idx++
	}
}

func (f *fakeSession) Alive() bool { return true }
func (f *fakeSession) Close()      {}

func listing(links ...string) string {
	page := `<html><body><div class="stories">`
	for _, l := range links {
		page += l
	}
	return page + `</div></body></html>`
}

func card(href string) string {
	return fmt.Sprintf(`<a class="story-card" href="%s">story</a>`, href)
}

func discoverConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
base_url: https://example.com/customers
story_card_list_selector: "div.stories"
story_card_link_selector: "a.story-card"
main_wait_timeout: 1
data_selectors:
  title:
    rules:
      - selector: "h1"
        method: text
        weight: 1
` + extra))
	if err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func noProgress(string) {}

func TestDiscoverDeduplicatesAndNormalizes(t *testing.T) {
	cfg := discoverConfig(t, "")
	sess := &fakeSession{states: []string{listing(
		card("/customers/acme"),
		card("https://example.com/customers/acme"), // same resource, absolute form
		card("/customers/globex"),
		card("#"),                                // placeholder anchor
		card("https://example.com/customers"),    // the listing page itself
		`<a class="story-card" href="#" data-href="/customers/initech">story</a>`,
	)}}

	got := Discover(context.Background(), sess, cfg, noProgress)
	want := []string{
		"https://example.com/customers/acme",
		"https://example.com/customers/globex",
		"https://example.com/customers/initech",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverZeroLinksOnFirstPage(t *testing.T) {
	cfg := discoverConfig(t, "")
	sess := &fakeSession{states: []string{listing()}}

	if got := Discover(context.Background(), sess, cfg, noProgress); len(got) != 0 {
		t.Errorf("Discover = %v, want empty", got)
	}
}

func TestDiscoverHangingNavigationBounded(t *testing.T) {
	cfg := discoverConfig(t, "")
	sess := &fakeSession{
		states:   []string{listing(card("/customers/acme"))},
		navBlock: true,
	}

	start := time.Now()
	if got := Discover(context.Background(), sess, cfg, noProgress); len(got) != 0 {
		t.Errorf("Discover = %v, want empty", got)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Discover blocked %v despite main_wait_timeout", elapsed)
	}
}

func TestDiscoverListingContainerMissing(t *testing.T) {
	cfg := discoverConfig(t, "")
	sess := &fakeSession{
		states:  []string{listing(card("/customers/acme"))},
		waitErr: errors.New("container never appeared"),
	}

	if got := Discover(context.Background(), sess, cfg, noProgress); len(got) != 0 {
		t.Errorf("Discover = %v, want empty", got)
	}
}

func TestDiscoverPageNumberPagination(t *testing.T) {
	cfg := discoverConfig(t, `
max_pages_to_scrape: 2
pagination_type: click_button_by_page_number
next_page_button_selector: "a.page-{page}"
`)
	sess := &fakeSession{
		states: []string{
			listing(card("/customers/acme"), card("/customers/globex")),
			listing(card("/customers/initech"), card("/customers/acme")), // acme repeats
		},
		advanceOn: "a.page-2",
	}

	got := Discover(context.Background(), sess, cfg, noProgress)
	want := []string{
		"https://example.com/customers/acme",
		"https://example.com/customers/globex",
		"https://example.com/customers/initech",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverStallDetection(t *testing.T) {
	// The next-page control is clickable but the content never changes:
	// discovery must stop after that iteration with page-1 links intact.
	cfg := discoverConfig(t, `
max_pages_to_scrape: 3
pagination_type: click_button_by_page_number
next_page_button_selector: "a.page-{page}"
`)
	sess := &fakeSession{
		states:    []string{listing(card("/customers/acme"))},
		advanceOn: "no-such-state", // clicks succeed but do nothing
	}

	got := Discover(context.Background(), sess, cfg, noProgress)
	want := []string{"https://example.com/customers/acme"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
	// Only the page-2 control was attempted; after the stall no page-3 click.
	for _, sel := range sess.clicked {
		if sel == "a.page-3" {
			t.Error("pagination continued past a detected stall")
		}
	}
}

func TestDiscoverMissingNextControlEndsPagination(t *testing.T) {
	cfg := discoverConfig(t, `
max_pages_to_scrape: 5
pagination_type: click_button_by_page_number
next_page_button_selector: "a.page-{page}"
`)
	sess := &fakeSession{
		states:   []string{listing(card("/customers/acme"))},
		clickErr: errors.New("element not found"),
	}

	got := Discover(context.Background(), sess, cfg, noProgress)
	if len(got) != 1 {
		t.Errorf("accumulated links lost on pagination failure: %v", got)
	}
}

func TestDiscoverLoadMore(t *testing.T) {
	cfg := discoverConfig(t, `
max_pages_to_scrape: 2
pagination_type: click_load_more
next_page_button_selector: "button.load-more"
`)
	sess := &fakeSession{
		states: []string{
			listing(card("/customers/acme"), card("/customers/globex")),
			listing(card("/customers/acme"), card("/customers/globex"), card("/customers/initech")),
		},
		advanceOn: "button.load-more",
	}

	got := Discover(context.Background(), sess, cfg, noProgress)
	want := []string{
		"https://example.com/customers/acme",
		"https://example.com/customers/globex",
		"https://example.com/customers/initech",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverLoadMoreScriptFallback(t *testing.T) {
	cfg := discoverConfig(t, `
max_pages_to_scrape: 2
pagination_type: click_load_more
next_page_button_selector: "button.load-more"
`)
	sess := &fakeSession{
		states: []string{
			listing(card("/customers/acme")),
			listing(card("/customers/acme"), card("/customers/globex")),
		},
		advanceOn:  "button.load-more",
		scriptOnly: true,
	}

	got := Discover(context.Background(), sess, cfg, noProgress)
	if len(got) != 2 {
		t.Errorf("Discover = %v, want 2 links via script-click fallback", got)
	}
}
