package parsing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testParser() *Parser {
	return NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func rssDoc(items string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Weekly</title>%s</channel></rss>`, items))
}

func rssItem(guid, title, link, pubDate string) string {
	return fmt.Sprintf(`<item><guid>%s</guid><title>%s</title><link>%s</link><pubDate>%s</pubDate><description>details</description></item>`,
		guid, title, link, pubDate)
}

func TestExtractNewItems(t *testing.T) {
	recent := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC1123Z)
	doc := rssDoc(
		rssItem("guid-1", "Live Music at the Riverwalk", "https://example.com/1", recent) +
			rssItem("guid-2", "Farmers Market Opening Weekend", "https://example.com/2", recent),
	)

	result, err := testParser().Extract(context.Background(), "https://example.com/feed", doc, nil)
	if err != nil {
		t.Fatalf("Extract() returned error: %v", err)
	}
	if result.FeedTitle != "Test Weekly" {
		t.Errorf("FeedTitle = %q, want %q", result.FeedTitle, "Test Weekly")
	}
	if len(result.NewItems) != 2 {
		t.Fatalf("NewItems has %d entries, want 2", len(result.NewItems))
	}
	if result.NewItems[0].GUID != "guid-1" {
		t.Errorf("first item GUID = %q, want guid-1", result.NewItems[0].GUID)
	}
}

func TestExtractSkipsKnownGUIDs(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	doc := rssDoc(
		rssItem("guid-1", "Live Music at the Riverwalk", "https://example.com/1", recent) +
			rssItem("guid-2", "Farmers Market Opening Weekend", "https://example.com/2", recent),
	)
	known := map[string]struct{}{"guid-1": {}}

	result, err := testParser().Extract(context.Background(), "https://example.com/feed", doc, known)
	if err != nil {
		t.Fatalf("Extract() returned error: %v", err)
	}
	if len(result.NewItems) != 1 || result.NewItems[0].GUID != "guid-2" {
		t.Errorf("NewItems = %v, want only guid-2", result.NewItems)
	}
}

func TestExtractQualityFiltering(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	stale := time.Now().UTC().Add(-60 * 24 * time.Hour).Format(time.RFC1123Z)
	doc := rssDoc(
		rssItem("guid-ok", "Neighborhood Art Walk Friday", "https://example.com/ok", recent) +
			rssItem("guid-short", "Hi", "https://example.com/short", recent) +
			rssItem("guid-stale", "An Event From Two Months Ago", "https://example.com/old", stale) +
			`<item><guid>guid-nolink</guid><title>Event Without Any Link</title></item>`,
	)

	result, err := testParser().Extract(context.Background(), "https://example.com/feed", doc, nil)
	if err != nil {
		t.Fatalf("Extract() returned error: %v", err)
	}
	if len(result.NewItems) != 1 || result.NewItems[0].GUID != "guid-ok" {
		t.Fatalf("NewItems = %+v, want only guid-ok", result.NewItems)
	}
	if result.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", result.Skipped)
	}
}

func TestExtractCollapsesDuplicateGUIDs(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	doc := rssDoc(
		rssItem("guid-1", "Live Music at the Riverwalk", "https://example.com/1", recent) +
			rssItem("guid-1", "Live Music at the Riverwalk (repeat)", "https://example.com/1", recent),
	)

	result, err := testParser().Extract(context.Background(), "https://example.com/feed", doc, nil)
	if err != nil {
		t.Fatalf("Extract() returned error: %v", err)
	}
	if len(result.NewItems) != 1 {
		t.Errorf("NewItems has %d entries, want 1 after de-duplication", len(result.NewItems))
	}
}

func TestExtractFallsBackToLinkGUID(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	doc := rssDoc(fmt.Sprintf(
		`<item><title>Gallery Opening Downtown</title><link>https://example.com/gallery</link><pubDate>%s</pubDate></item>`, recent))

	result, err := testParser().Extract(context.Background(), "https://example.com/feed", doc, nil)
	if err != nil {
		t.Fatalf("Extract() returned error: %v", err)
	}
	if len(result.NewItems) != 1 {
		t.Fatalf("NewItems has %d entries, want 1", len(result.NewItems))
	}
	if got := result.NewItems[0].GUID; got != "https://example.com/gallery" {
		t.Errorf("GUID = %q, want the item link", got)
	}
}

func TestExtractMalformedDocument(t *testing.T) {
	_, err := testParser().Extract(context.Background(), "https://example.com/feed", []byte("not xml at all"), nil)
	if err == nil {
		t.Fatal("Extract() succeeded on malformed input, want error")
	}
}
