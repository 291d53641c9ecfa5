package domain

import "testing"

func TestMetadataReleaseYear(t *testing.T) {
	tests := []struct {
		released string
		want     int
	}{
		{"2020-05-01", 2020},
		{"2021-01-01T00:00:00.000Z", 2021},
		{"1999", 1999},
		{"", 0},
		{"n/a", 0},
	}
	for _, tc := range tests {
		got := Metadata{Released: tc.released}.ReleaseYear()
		if got != tc.want {
			t.Errorf("ReleaseYear(%q) = %d, want %d", tc.released, got, tc.want)
		}
	}
}

func TestScoredHitMergeKeepsHitFieldsWhenDetailsAreEmpty(t *testing.T) {
	hit := ScoredHit{
		SearchHit: SearchHit{
			ResolverID:    "a",
			Title:         "Test 2021",
			DetailPageURL: "u",
			Duration:      100,
			Format:        "mp4",
			Size:          1000,
		},
		ResolverName: "fake",
		Score:        5,
	}

	stream := hit.Merge(StreamDetails{Video: "http://x/a.mp4"})
	if stream.Video != "http://x/a.mp4" {
		t.Fatalf("unexpected video: %q", stream.Video)
	}
	if stream.Title != "Test 2021" || stream.Size != 1000 || stream.Format != "mp4" || stream.Duration != 100 {
		t.Fatalf("hit fields lost in merge: %#v", stream.ScoredHit)
	}
	if stream.Score != 5 || stream.ResolverName != "fake" {
		t.Fatalf("score fields lost in merge: %#v", stream.ScoredHit)
	}
}

func TestScoredHitMergeDetailsWin(t *testing.T) {
	hit := ScoredHit{SearchHit: SearchHit{ResolverID: "a", Title: "probe title", Size: 10}}
	stream := hit.Merge(StreamDetails{
		Video: "v",
		Title: "real title",
		Size:  20,
		Subtitles: []Subtitle{
			{ID: "cs", URL: "http://x/cs.vtt", Lang: "cze"},
		},
		BehaviorHints: map[string]any{"notWebReady": true},
	})
	if stream.Title != "real title" || stream.Size != 20 {
		t.Fatalf("expected details to win, got %#v", stream.ScoredHit)
	}
	if len(stream.Subtitles) != 1 || stream.BehaviorHints["notWebReady"] != true {
		t.Fatalf("resolution fields not carried: %#v", stream)
	}
	if hit.Title != "probe title" {
		t.Fatalf("merge mutated the input hit")
	}
}
