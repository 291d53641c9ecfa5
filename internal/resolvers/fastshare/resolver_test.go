package fastshare

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
	"czstreams/internal/resolvers/common"
)

func resultItem(id int, playable bool) string {
	marker := ""
	if playable {
		marker = `<span class="playable"></span>`
	}
	return `<li>` + marker + `<div class="video_detail">
		<a href="/` + strconv.Itoa(id) + `/pelisky.mkv">Pelíšky ` + strconv.Itoa(id) + `</a>
		<span class="video_time">1:30:00</span><span class="video_time">1080p</span>
		<span class="pull-right">700 MB</span></div></li>`
}

func newTestResolver(t *testing.T) (*Resolver, *atomic.Int32) {
	t.Helper()
	var pageCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Pelíšky/s":
			_, _ = w.Write([]byte(`<html><input id="search_token" value="tok123"></html>`))
		case "/test2.php":
			pageCalls.Add(1)
			q := r.URL.Query()
			if q.Get("token") != "tok123" || q.Get("type") != "video" {
				t.Errorf("unexpected query %v", q)
			}
			term, _ := base64.StdEncoding.DecodeString(q.Get("term"))
			if string(term) != "Pelíšky" {
				t.Errorf("unexpected term %q", term)
			}
			switch q.Get("limit") {
			case "1":
				_, _ = w.Write([]byte(resultItem(1, true) + resultItem(2, false) + `<li>ad</li>`))
			case "10":
				_, _ = w.Write([]byte(resultItem(3, true)))
			}
		case "/1/pelisky.mkv":
			_, _ = w.Write([]byte(`<html><head><meta name="description" content="Pelíšky online ke zhlédnutí a stažení"></head>
				<body><video><source src="https://cdn.fastshare.test/1-480.mp4" width="854"><source src="https://cdn.fastshare.test/1-1080.mp4" width="1920"><source src="https://cdn.fastshare.test/1-720.mp4" width="1280"></video></body></html>`))
		case "/2/form.mkv":
			_, _ = w.Write([]byte(`<html><body><form id="form" action="/download/2"></form></body></html>`))
		case "/3/none.mkv":
			_, _ = w.Write([]byte(`<html><body></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, Client: server.Client()}), &pageCalls
}

func TestInitDisabledByDefault(t *testing.T) {
	if New(Config{}).Init() {
		t.Fatal("expected fastshare to be disabled by default")
	}
	if !New(Config{Enabled: true}).Init() {
		t.Fatal("expected Enabled to turn the resolver on")
	}
}

func TestSearchKeepsPlayableItemsAcrossPages(t *testing.T) {
	r, calls := newTestResolver(t)
	hits, err := r.Search(context.Background(), "Pelíšky", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if calls.Load() != searchPages {
		t.Fatalf("expected %d page calls, got %d", searchPages, calls.Load())
	}
	want := []domain.SearchHit{
		{ResolverID: r.baseURL + "/1/pelisky.mkv", Title: "Pelíšky 1", DetailPageURL: r.baseURL + "/1/pelisky.mkv", Duration: 5400, Format: "1080p", Size: 734003200},
		{ResolverID: r.baseURL + "/3/pelisky.mkv", Title: "Pelíšky 3", DetailPageURL: r.baseURL + "/3/pelisky.mkv", Duration: 5400, Format: "1080p", Size: 734003200},
	}
	if diff := cmp.Diff(want, hits); diff != "" {
		t.Fatalf("hits mismatch (-want +got):\n%s", diff)
	}
}

func TestResolvePicksWidestSource(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	details, err := r.Resolve(ctx, r.baseURL+"/1/pelisky.mkv", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if details.Video != "https://cdn.fastshare.test/1-1080.mp4" || details.Title != "Pelíšky" {
		t.Fatalf("unexpected details %+v", details)
	}

	details, err = r.Resolve(ctx, "/2/form.mkv", nil)
	if err != nil {
		t.Fatalf("resolve form: %v", err)
	}
	if details.Video != r.baseURL+"/download/2" {
		t.Fatalf("unexpected form video %q", details.Video)
	}

	if _, err := r.Resolve(ctx, "/3/none.mkv", nil); !errors.Is(err, resolver.ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
}

func TestResolveRejectsForeignHosts(t *testing.T) {
	r, _ := newTestResolver(t)
	var hits atomic.Int32
	evil := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<video><source src="http://evil/v.mp4" width="1920"></video>`))
	}))
	defer evil.Close()

	for _, id := range []string{evil.URL + "/1/pelisky.mkv", "//" + evil.Listener.Addr().String() + "/x"} {
		if _, err := r.Resolve(context.Background(), id, nil); !errors.Is(err, common.ErrForeignURL) {
			t.Errorf("%q: expected ErrForeignURL, got %v", id, err)
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("foreign host was fetched %d times", hits.Load())
	}
}
