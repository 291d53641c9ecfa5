package sledujteto

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "anon", Path: "/"})
		case "/account/login/":
			if err := r.ParseForm(); err != nil || r.PostForm.Get("form_id") != "Form_Login" {
				t.Errorf("unexpected login form %v", r.PostForm)
			}
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "user-" + r.PostForm.Get("email"), Path: "/"})
		case "/services/get-files":
			if r.URL.Query().Get("query") == "broken" {
				_, _ = w.Write([]byte(`{"error":"too many requests","files":[]}`))
				return
			}
			if c, err := r.Cookie("PHPSESSID"); err != nil || c.Value != "anon" {
				t.Errorf("expected anonymous cookie, got %q", r.Header.Get("Cookie"))
			}
			_, _ = w.Write([]byte(`{"files":[
				{"id":101,"filename":"Pelisky.1999.mkv","full_url":"https://www.sledujteto.cz/file/101/pelisky","movie_duration":"01:51:40","movie_resolution":"1920x1080","filesize":"1.2 GB"},
				{"id":"","filename":"broken"}
			]}`))
		case "/services/add-file-link":
			var payload struct {
				Params struct {
					ID string `json:"id"`
				} `json:"params"`
			}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			if payload.Params.ID == "101" {
				_, _ = w.Write([]byte(`{"hash":"abcdef"}`))
				return
			}
			_, _ = w.Write([]byte(`{"hash":""}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, Client: server.Client()})
}

func TestDisabledAndNeverValid(t *testing.T) {
	r := New(Config{})
	if r.Init() {
		t.Fatal("expected sledujteto to be disabled by default")
	}
	if ok, err := r.ValidateConfig(context.Background(), domain.Configuration{usernameKey: "a", passwordKey: "b"}); ok || err != nil {
		t.Fatalf("expected invalid config, got %v %v", ok, err)
	}
}

func TestSearchAnonymousSession(t *testing.T) {
	r := newTestResolver(t)
	hits, err := r.Search(context.Background(), "Pelíšky", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []domain.SearchHit{{
		ResolverID:    "101",
		Title:         "Pelisky.1999.mkv",
		DetailPageURL: "https://www.sledujteto.cz/file/101/pelisky",
		Duration:      6700,
		Format:        "1920x1080",
		Size:          1288490188,
	}}
	if diff := cmp.Diff(want, hits); diff != "" {
		t.Fatalf("hits mismatch (-want +got):\n%s", diff)
	}

	hits, err = r.Search(context.Background(), "broken", nil)
	if err != nil || len(hits) != 0 {
		t.Fatalf("expected empty result for api error, got %v %v", hits, err)
	}
}

func TestResolveBuildsPlayerURL(t *testing.T) {
	r := newTestResolver(t)
	details, err := r.Resolve(context.Background(), "101", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if details.Video != r.baseURL+"/player/index/sledujteto/abcdef" {
		t.Fatalf("unexpected video %q", details.Video)
	}
	if details.BehaviorHints["notWebReady"] != true {
		t.Fatalf("expected notWebReady hint, got %#v", details.BehaviorHints)
	}
	request := details.BehaviorHints["proxyHeaders"].(map[string]any)["request"].(map[string]string)
	if request["Cookie"] != "PHPSESSID=anon" || request["Referer"] != r.baseURL+"/" {
		t.Fatalf("unexpected proxy headers %#v", request)
	}

	if _, err := r.Resolve(context.Background(), "999", nil); !errors.Is(err, resolver.ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
}

func TestLoginWithCredentials(t *testing.T) {
	r := newTestResolver(t)
	cookies, err := r.cookies(context.Background(), domain.Configuration{usernameKey: "me@example.com", passwordKey: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if cookies != "PHPSESSID=user-me@example.com" {
		t.Fatalf("unexpected cookies %q", cookies)
	}
	if got := r.Debug().(map[string]any)["sessions"].([]resolver.AuthEntry); len(got) != 1 {
		t.Fatalf("expected one cached session, got %#v", got)
	}
}
