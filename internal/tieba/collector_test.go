package tieba

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func pageFromJSON(t *testing.T, forumList string, hasMore string) *RawPage {
	t.Helper()
	return &RawPage{ForumList: json.RawMessage(forumList), HasMore: hasMore}
}

func fetcherFor(pages []*RawPage) PageFetcher {
	return func(ctx context.Context, page int) (*RawPage, error) {
		if page > len(pages) {
			return nil, fmt.Errorf("unexpected fetch of page %d", page)
		}
		return pages[page-1], nil
	}
}

func TestCollectSpecExamplePage(t *testing.T) {
	page := pageFromJSON(t,
		`{"non-gconforum":[{"id":"1","name":"A"}],"gconforum":[]}`, "0")

	entries, err := Collect(context.Background(), fetcherFor([]*RawPage{page}))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ID != "1" || entries[0].Name != "A" {
		t.Fatalf("entry = %+v, want {1 A}", entries[0])
	}
}

func TestCollectFlattensArbitraryNesting(t *testing.T) {
	// [[x,y],[[z]]] must flatten to [x,y,z] regardless of depth.
	page := pageFromJSON(t,
		`{"non-gconforum":[[{"id":"x","name":"X"},{"id":"y","name":"Y"}],[[{"id":"z","name":"Z"}]]]}`, "0")

	entries, err := Collect(context.Background(), fetcherFor([]*RawPage{page}))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(entries), entries)
	}
	got := map[string]bool{}
	for _, e := range entries {
		got[e.ID] = true
	}
	for _, id := range []string{"x", "y", "z"} {
		if !got[id] {
			t.Errorf("missing entry %s after flattening", id)
		}
	}
}

func TestCollectDeduplicatesFirstOccurrenceWins(t *testing.T) {
	pageA := pageFromJSON(t,
		`{"non-gconforum":[{"id":"1","name":"First","slogan":"from A"},{"id":"2","name":"B"}]}`, "1")
	pageB := pageFromJSON(t,
		`{"non-gconforum":[{"id":"1","name":"Duplicate","slogan":"from B"},{"id":"3","name":"C"}]}`, "0")

	entries, err := Collect(context.Background(), fetcherFor([]*RawPage{pageA, pageB}))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3 (deduplicated union)", len(entries))
	}
	if entries[0].ID != "1" || entries[0].Slogan != "from A" {
		t.Fatalf("first occurrence not retained: %+v", entries[0])
	}
}

func TestCollectReturnsPartialResultsOnFetchFailure(t *testing.T) {
	pageA := pageFromJSON(t, `{"non-gconforum":[{"id":"1","name":"A"}]}`, "1")
	boom := errors.New("upstream unavailable")
	fetch := func(ctx context.Context, page int) (*RawPage, error) {
		if page == 1 {
			return pageA, nil
		}
		return nil, boom
	}

	entries, err := Collect(context.Background(), fetch)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if len(entries) != 1 {
		t.Fatalf("partial results discarded: got %d entries, want 1", len(entries))
	}
}

func TestCollectStopsWhenHasMoreNotSet(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, page int) (*RawPage, error) {
		calls++
		return pageFromJSON(t, `{"non-gconforum":[{"id":"1","name":"A"}]}`, "0"), nil
	}
	if _, err := Collect(context.Background(), fetch); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fetched %d pages, want exactly 1", calls)
	}
}

func TestCollectDropsRecordsWithoutIdentity(t *testing.T) {
	page := pageFromJSON(t,
		`{"non-gconforum":[{"slogan":"anonymous"},{"id":"1","name":"A"},{"name":"OnlyName"}]}`, "0")

	entries, err := Collect(context.Background(), fetcherFor([]*RawPage{page}))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (record without id and name dropped)", len(entries))
	}
}

func TestCollectNumericIDsNormalized(t *testing.T) {
	page := pageFromJSON(t, `{"non-gconforum":[{"id":12345,"name":"Numeric"}]}`, "0")

	entries, err := Collect(context.Background(), fetcherFor([]*RawPage{page}))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "12345" {
		t.Fatalf("numeric id not normalized: %+v", entries)
	}
}
