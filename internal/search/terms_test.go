package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"czstreams/internal/domain"
)

func TestSearchTerms(t *testing.T) {
	tests := []struct {
		name string
		meta domain.Metadata
		want []string
	}{
		{
			name: "episode",
			meta: domain.Metadata{
				Names:   map[string]string{"en": "Show"},
				Episode: &domain.Episode{Season: 1, Number: 2},
			},
			want: []string{"Show S01E02", "Show 01x02", "Show 1x2"},
		},
		{
			name: "episode with two digit numbers collapses x forms",
			meta: domain.Metadata{
				Names:   map[string]string{"en": "Show"},
				Episode: &domain.Episode{Season: 10, Number: 12},
			},
			want: []string{"Show S10E12", "Show 10x12"},
		},
		{
			name: "movie",
			meta: domain.Metadata{
				Names:    map[string]string{"en": "Movie"},
				Released: "2020-05-01",
			},
			want: []string{"Movie 2020"},
		},
		{
			name: "movie without release date",
			meta: domain.Metadata{Names: map[string]string{"en": "Movie"}},
			want: []string{"Movie"},
		},
		{
			name: "language order and blank names",
			meta: domain.Metadata{
				Names: map[string]string{
					"sk": "Pelíšky SK",
					"cs": "Pelíšky",
					"en": "Cosy Dens",
					"de": "  ",
				},
				Released: "1999-03-04T00:00:00.000Z",
			},
			want: []string{"Cosy Dens 1999", "Pelíšky 1999", "Pelíšky SK 1999"},
		},
		{
			name: "identical localized names",
			meta: domain.Metadata{
				Names:    map[string]string{"en": "Dune", "cs": "Dune"},
				Released: "2021",
			},
			want: []string{"Dune 2021"},
		},
		{
			name: "no names",
			meta: domain.Metadata{Released: "2021"},
			want: []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SearchTerms(tc.meta)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("terms mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
