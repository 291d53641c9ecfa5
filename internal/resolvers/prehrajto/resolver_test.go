package prehrajto

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
	"czstreams/internal/resolvers/common"
)

const searchPage = `<html><body>
<div class="video-list">
  <a class="video--link" href="/pelisky-1999/abc123" title="Pelíšky (1999) CZ">
    <div class="video__tag video__tag--size">1.5 GB</div>
    <div class="video__tag video__tag--time">01:51:40</div>
    <div class="video__tag video__tag--format"><svg><use xlink:href="#icon-mkv"></use></svg></div>
  </a>
  <a class="video--link" href="/pelisky-trailer/def456" title="Pelíšky trailer">
    <div class="video__tag video__tag--size">12,5 MB</div>
    <div class="video__tag video__tag--time">02:10</div>
  </a>
  <a class="other" href="/ignored">ignored</a>
</div>
</body></html>`

const detailPage = `<html><head>
<script>var unrelated = 1;</script>
<script>
	var sources = [
		{file: "https://cdn.prehraj.test/abc123-480.mp4", label: "480p"},
		{file: "https://cdn.prehraj.test/abc123-1080.mp4", label: "1080p"}
	];
	var tracks = [
		{kind: "captions", label: "CZ titulky", src: "https://cdn.prehraj.test/abc123.cz.vtt", srclang: "cs"},
		{kind: "thumbnails", label: "thumbs", src: "https://cdn.prehraj.test/thumbs.vtt", srclang: ""}
	];
</script></head><body></body></html>`

type fakeSite struct {
	logins   atomic.Int32
	password string
}

func (f *fakeSite) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/" && r.Method == http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "anon", Path: "/"})
			_, _ = w.Write([]byte("<html></html>"))
		case r.URL.Path == "/" && r.Method == http.MethodPost:
			f.logins.Add(1)
			if r.URL.Query().Get("frm") != "loginDialog-login-loginForm" {
				t.Errorf("unexpected login query %q", r.URL.RawQuery)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse login form: %v", err)
			}
			if cookie, err := r.Cookie("PHPSESSID"); err != nil || cookie.Value != "anon" {
				t.Errorf("expected anonymous cookie on login, got %v", r.Header.Get("Cookie"))
			}
			if r.FormValue("_do") != "loginDialog-login-loginForm-submit" || r.FormValue("remember_login") != "on" {
				t.Errorf("unexpected login form %v", r.MultipartForm.Value)
			}
			if r.FormValue("email") == "user@example.com" && r.FormValue("password") == f.password {
				http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "token", Path: "/"})
			}
			_, _ = w.Write([]byte(`{}`))
		case strings.HasPrefix(r.URL.Path, "/hledej/"):
			if !strings.Contains(r.Header.Get("Cookie"), "access_token=token") {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if r.URL.Path != "/hledej/Pelíšky 1999" || r.URL.Query().Get("vp-page") != "0" {
				t.Errorf("unexpected search url %q", r.URL.String())
			}
			_, _ = w.Write([]byte(searchPage))
		case r.URL.Path == "/pelisky-1999/abc123":
			_, _ = w.Write([]byte(detailPage))
		case r.URL.Path == "/empty":
			_, _ = w.Write([]byte("<html><script>var x = 1;</script></html>"))
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestResolver(t *testing.T) (*Resolver, *fakeSite) {
	t.Helper()
	site := &fakeSite{password: "secret"}
	server := httptest.NewServer(site.handler(t))
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, Client: server.Client()}), site
}

var validConfig = domain.Configuration{usernameKey: "user@example.com", passwordKey: "secret"}

func TestValidateConfig(t *testing.T) {
	r, site := newTestResolver(t)
	ctx := context.Background()

	if ok, err := r.ValidateConfig(ctx, domain.Configuration{}); ok || err != nil {
		t.Fatalf("expected missing credentials to be invalid, got %v %v", ok, err)
	}
	if ok, err := r.ValidateConfig(ctx, domain.Configuration{usernameKey: "user@example.com", passwordKey: "wrong"}); ok || err != nil {
		t.Fatalf("expected wrong password to be invalid, got %v %v", ok, err)
	}
	if ok, err := r.ValidateConfig(ctx, validConfig); !ok || err != nil {
		t.Fatalf("expected valid credentials, got %v %v", ok, err)
	}
	if ok, _ := r.ValidateConfig(ctx, validConfig); !ok {
		t.Fatal("expected cached session to stay valid")
	}
	if site.logins.Load() != 2 {
		t.Fatalf("expected 2 login attempts (wrong + first valid), got %d", site.logins.Load())
	}
}

func TestSearchParsesResultList(t *testing.T) {
	r, _ := newTestResolver(t)
	hits, err := r.Search(context.Background(), "Pelíšky 1999", validConfig)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	want := []domain.SearchHit{
		{
			ResolverID:    "/pelisky-1999/abc123",
			Title:         "Pelíšky (1999) CZ",
			DetailPageURL: r.baseURL + "/pelisky-1999/abc123",
			Duration:      6700,
			Format:        "mkv",
			Size:          1610612736,
		},
		{
			ResolverID:    "/pelisky-trailer/def456",
			Title:         "Pelíšky trailer",
			DetailPageURL: r.baseURL + "/pelisky-trailer/def456",
			Duration:      130,
			Size:          13107200,
		},
	}
	if diff := cmp.Diff(want, hits); diff != "" {
		t.Fatalf("hits mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveReadsPlayerScript(t *testing.T) {
	r, _ := newTestResolver(t)
	details, err := r.Resolve(context.Background(), "/pelisky-1999/abc123", validConfig)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if details.Video != "https://cdn.prehraj.test/abc123-1080.mp4" {
		t.Fatalf("expected last source, got %q", details.Video)
	}
	want := []domain.Subtitle{{ID: "CZ titulky", URL: "https://cdn.prehraj.test/abc123.cz.vtt", Lang: "cs"}}
	if diff := cmp.Diff(want, details.Subtitles); diff != "" {
		t.Fatalf("subtitles mismatch (-want +got):\n%s", diff)
	}

	_, err = r.Resolve(context.Background(), "/empty", validConfig)
	if !errors.Is(err, resolver.ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
}

func TestCleanupDropsSessions(t *testing.T) {
	r, site := newTestResolver(t)
	ctx := context.Background()
	if ok, _ := r.ValidateConfig(ctx, validConfig); !ok {
		t.Fatal("expected valid config")
	}
	if entries := r.Debug().(map[string]any)["sessions"].([]resolver.AuthEntry); len(entries) != 1 || entries[0].Username != "user@example.com" {
		t.Fatalf("unexpected debug snapshot %#v", entries)
	}
	if err := r.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if ok, _ := r.ValidateConfig(ctx, validConfig); !ok {
		t.Fatal("expected valid config after cleanup")
	}
	if site.logins.Load() != 2 {
		t.Fatalf("expected a fresh login after cleanup, got %d logins", site.logins.Load())
	}
}

func TestResolveRejectsForeignHosts(t *testing.T) {
	r, _ := newTestResolver(t)
	var hits atomic.Int32
	evil := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<script>var sources = [{file: "http://evil/v.mp4"}];</script>`))
	}))
	defer evil.Close()
	host := strings.TrimPrefix(evil.URL, "http://")

	for _, id := range []string{"@" + host + "/x", "//" + host + "/x", evil.URL + "/x", "pelisky-1999/abc123"} {
		details, err := r.Resolve(context.Background(), id, validConfig)
		if !errors.Is(err, common.ErrForeignURL) {
			t.Errorf("%q: expected ErrForeignURL, got %+v err=%v", id, details, err)
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("foreign host was fetched %d times", hits.Load())
	}
}
