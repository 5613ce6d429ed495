package catalog

import (
	"reflect"
	"testing"
)

func testFeeds() []Feed {
	return []Feed{
		{ID: "alpha", Publication: "Alpha Weekly", City: "Austin", Category: "events", IsActive: true},
		{ID: "beta", Publication: "Beta Daily", City: "Austin", Category: "music", IsActive: true},
		{ID: "gamma", Publication: "Gamma Gazette", City: "New Orleans", Category: "events", IsActive: true},
		{ID: "delta", Publication: "Delta Dispatch", City: "Portland", Category: "events", IsActive: false},
	}
}

func TestScheduleID(t *testing.T) {
	tests := []struct {
		feed Feed
		want string
	}{
		{Feed{ID: "alpha", City: "Austin"}, "alpha-austin"},
		{Feed{ID: "gamma", City: "New Orleans"}, "gamma-new-orleans"},
		{Feed{ID: "x", City: "  Salt Lake City "}, "x-salt-lake-city"},
	}
	for _, tt := range tests {
		if got := tt.feed.ScheduleID(); got != tt.want {
			t.Errorf("ScheduleID() for city %q = %q, want %q", tt.feed.City, got, tt.want)
		}
	}
}

func TestFeedsForCityCaseInsensitive(t *testing.T) {
	c := New(testFeeds())

	for _, city := range []string{"Austin", "austin", "AUSTIN", " austin "} {
		feeds := c.FeedsForCity(city)
		if len(feeds) != 2 {
			t.Errorf("FeedsForCity(%q) returned %d feeds, want 2", city, len(feeds))
		}
	}

	if feeds := c.FeedsForCity("new orleans"); len(feeds) != 1 || feeds[0].ID != "gamma" {
		t.Errorf("FeedsForCity(%q) = %v, want single gamma feed", "new orleans", feeds)
	}
}

func TestFeedsForCityExcludesInactive(t *testing.T) {
	c := New(testFeeds())
	if feeds := c.FeedsForCity("Portland"); len(feeds) != 0 {
		t.Errorf("FeedsForCity(Portland) = %v, want none (only feed is inactive)", feeds)
	}
}

func TestCitiesDeduplicated(t *testing.T) {
	c := New(testFeeds())
	got := c.Cities()
	want := []string{"Austin", "New Orleans"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cities() = %v, want %v", got, want)
	}
}

func TestActiveFeeds(t *testing.T) {
	c := New(testFeeds())
	if got := len(c.ActiveFeeds()); got != 3 {
		t.Errorf("ActiveFeeds() returned %d feeds, want 3", got)
	}
}

func TestNewCopiesInput(t *testing.T) {
	feeds := testFeeds()
	c := New(feeds)
	feeds[0].IsActive = false

	if got := len(c.ActiveFeeds()); got != 3 {
		t.Errorf("catalog changed after caller mutated input slice: %d active feeds, want 3", got)
	}
}

func TestBuiltinCatalog(t *testing.T) {
	c := Builtin()

	active := c.ActiveFeeds()
	if len(active) == 0 {
		t.Fatal("Builtin() has no active feeds")
	}
	for _, f := range active {
		if f.ID == "" || f.Publication == "" || f.City == "" || f.URL == "" {
			t.Errorf("builtin feed %+v missing required fields", f)
		}
	}
	if len(c.Cities()) < 3 {
		t.Errorf("Builtin() covers %d cities, want at least 3", len(c.Cities()))
	}
}
