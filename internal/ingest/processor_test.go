package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wanderhub/publication-ingest/internal/catalog"
	"github.com/wanderhub/publication-ingest/internal/fetching"
	"github.com/wanderhub/publication-ingest/internal/parsing"
)

type fakeFetcher struct {
	result  *fetching.Result
	err     error
	gotETag string
	calls   int
}

func (f *fakeFetcher) Fetch(_ context.Context, _, etag, _ string) (*fetching.Result, error) {
	f.calls++
	f.gotETag = etag
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeStore struct {
	known     map[string]struct{}
	saved     []*parsing.Item
	savedFeed catalog.Feed
	saveErr   error
}

func (s *fakeStore) KnownGUIDs(context.Context, string) (map[string]struct{}, error) {
	return s.known, nil
}

func (s *fakeStore) SaveEvents(_ context.Context, feed catalog.Feed, items []*parsing.Item) (int, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	s.savedFeed = feed
	s.saved = append(s.saved, items...)
	return len(items), nil
}

func (s *fakeStore) Close() error { return nil }

type recordingNotifier struct {
	notified int
	err      error
}

func (n *recordingNotifier) NotifyNewEvents(_ context.Context, _, _ string, items []*parsing.Item) error {
	n.notified += len(items)
	return n.err
}

func feedDoc(n int) []byte {
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	items := ""
	for i := 0; i < n; i++ {
		items += fmt.Sprintf(`<item><guid>guid-%d</guid><title>Event Number %d Downtown</title><link>https://example.com/%d</link><pubDate>%s</pubDate></item>`, i, i, i, recent)
	}
	return []byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>` + items + `</channel></rss>`)
}

func testFeed() catalog.Feed {
	return catalog.Feed{
		ID:          "austin-chronicle",
		Publication: "The Austin Chronicle",
		City:        "Austin",
		Category:    "events",
		URL:         "https://example.com/feed",
		IsActive:    true,
	}
}

func newTestProcessor(f Fetcher, s *fakeStore, n *recordingNotifier) *Processor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProcessor(f, parsing.NewParser(logger), s, n, logger)
}

func TestFetchAndProcessStoresAndNotifies(t *testing.T) {
	fetcher := &fakeFetcher{result: &fetching.Result{Content: feedDoc(3), ETag: `"v1"`}}
	store := &fakeStore{}
	notifier := &recordingNotifier{}
	p := newTestProcessor(fetcher, store, notifier)

	count, err := p.FetchAndProcess(context.Background(), testFeed())
	if err != nil {
		t.Fatalf("FetchAndProcess() returned error: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if len(store.saved) != 3 {
		t.Errorf("stored %d items, want 3", len(store.saved))
	}
	if store.savedFeed.City != "Austin" {
		t.Errorf("saved under city %q, want Austin", store.savedFeed.City)
	}
	if notifier.notified != 3 {
		t.Errorf("notified %d items, want 3", notifier.notified)
	}
}

func TestFetchAndProcessSkipsKnownItems(t *testing.T) {
	fetcher := &fakeFetcher{result: &fetching.Result{Content: feedDoc(3)}}
	store := &fakeStore{known: map[string]struct{}{"guid-0": {}, "guid-1": {}}}
	p := newTestProcessor(fetcher, store, &recordingNotifier{})

	count, err := p.FetchAndProcess(context.Background(), testFeed())
	if err != nil {
		t.Fatalf("FetchAndProcess() returned error: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (two of three already known)", count)
	}
}

func TestFetchAndProcessRemembersValidators(t *testing.T) {
	fetcher := &fakeFetcher{result: &fetching.Result{Content: feedDoc(1), ETag: `"v7"`}}
	p := newTestProcessor(fetcher, &fakeStore{}, &recordingNotifier{})
	feed := testFeed()

	if _, err := p.FetchAndProcess(context.Background(), feed); err != nil {
		t.Fatalf("first FetchAndProcess() returned error: %v", err)
	}

	fetcher.result = &fetching.Result{NotModified: true, ETag: `"v7"`}
	count, err := p.FetchAndProcess(context.Background(), feed)
	if err != nil {
		t.Fatalf("second FetchAndProcess() returned error: %v", err)
	}
	if fetcher.gotETag != `"v7"` {
		t.Errorf("second fetch sent ETag %q, want %q", fetcher.gotETag, `"v7"`)
	}
	if count != 0 {
		t.Errorf("count = %d for 304 response, want 0", count)
	}
}

func TestFetchAndProcessFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	store := &fakeStore{}
	p := newTestProcessor(fetcher, store, &recordingNotifier{})

	if _, err := p.FetchAndProcess(context.Background(), testFeed()); err == nil {
		t.Fatal("FetchAndProcess() returned nil, want fetch error")
	}
	if len(store.saved) != 0 {
		t.Errorf("stored %d items after fetch failure, want 0", len(store.saved))
	}
}

func TestFetchAndProcessNotifyFailureIsNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{result: &fetching.Result{Content: feedDoc(2)}}
	notifier := &recordingNotifier{err: errors.New("broker down")}
	p := newTestProcessor(fetcher, &fakeStore{}, notifier)

	count, err := p.FetchAndProcess(context.Background(), testFeed())
	if err != nil {
		t.Fatalf("FetchAndProcess() returned error on notify failure: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2 (events stored despite notify failure)", count)
	}
}
