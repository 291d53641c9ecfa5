package webshare

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
)

func TestMD5Crypt(t *testing.T) {
	cases := []struct {
		password, salt, want string
	}{
		{"password", "saltsalt", "$1$saltsalt$qjXMvbEw8oaL.CzflDtaK/"},
		{"p@ss w0rd", "UBPzK1Ws", "$1$UBPzK1Ws$Gd2S2GA/XHjiZKTOWJosw."},
		{"", "abc", "$1$abc$Or2rbeUYTvt12aiVzMuS/."},
		{"password", "$1$saltsalt$ignored", "$1$saltsalt$qjXMvbEw8oaL.CzflDtaK/"},
	}
	for _, tc := range cases {
		if got := md5crypt(tc.password, tc.salt); got != tc.want {
			t.Fatalf("md5crypt(%q, %q) = %q, want %q", tc.password, tc.salt, got, tc.want)
		}
	}
}

func passwordHash(password, salt string) string {
	digest := sha1.Sum([]byte(md5crypt(password, salt)))
	return hex.EncodeToString(digest[:])
}

type fakeAPI struct {
	logins atomic.Int32
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		w.Header().Set("Content-Type", "application/xml")
		switch r.URL.Path {
		case "/api/salt/":
			if r.PostForm.Get("username_or_email") != "user" {
				_, _ = w.Write([]byte(`<?xml version="1.0"?><response><status>FATAL</status></response>`))
				return
			}
			_, _ = w.Write([]byte(`<?xml version="1.0"?><response><status>OK</status><salt>UBPzK1Ws</salt></response>`))
		case "/api/login/":
			f.logins.Add(1)
			if r.PostForm.Get("password") != passwordHash("secret", "UBPzK1Ws") || r.PostForm.Get("keep_logged_in") != "1" {
				_, _ = w.Write([]byte(`<response><status>FATAL</status><code>LOGIN_FATAL_1</code></response>`))
				return
			}
			_, _ = w.Write([]byte(`<response><status>OK</status><token>wst-token</token></response>`))
		case "/api/search/":
			if r.PostForm.Get("wst") != "wst-token" || r.PostForm.Get("category") != "video" || r.PostForm.Get("what") != "Pelíšky" {
				t.Errorf("unexpected search form %v", r.PostForm)
			}
			_, _ = w.Write([]byte(`<response><status>OK</status><total>3</total>
<file><ident>aa11</ident><name>Pelisky.1999.1080p.mkv</name><type>mkv</type><size>4294967296</size><password>0</password></file>
<file><ident>bb22</ident><name>Pelisky.locked.avi</name><type>avi</type><size>700000000</size><password>1</password></file>
<file><ident>cc33</ident><name>Pelisky CZ</name><type>mp4</type><size>1048576</size><password>0</password></file>
</response>`))
		case "/api/file_link/":
			if r.PostForm.Get("ident") == "aa11" {
				_, _ = w.Write([]byte(`<response><status>OK</status><link>https://vip.webshare.test/aa11/Pelisky.mkv</link></response>`))
				return
			}
			_, _ = w.Write([]byte(`<response><status>FATAL</status><code>FILE_LINK_FATAL_1</code></response>`))
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestResolver(t *testing.T) (*Resolver, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, Client: server.Client()}), api
}

var validConfig = domain.Configuration{usernameKey: "user", passwordKey: "secret"}

func TestValidateConfig(t *testing.T) {
	r, api := newTestResolver(t)
	ctx := context.Background()

	cases := []struct {
		name string
		cfg  domain.Configuration
		want bool
	}{
		{name: "missing", cfg: domain.Configuration{}, want: false},
		{name: "unknown user", cfg: domain.Configuration{usernameKey: "nobody", passwordKey: "secret"}, want: false},
		{name: "wrong password", cfg: domain.Configuration{usernameKey: "user", passwordKey: "bad"}, want: false},
		{name: "valid", cfg: validConfig, want: true},
		{name: "valid cached", cfg: validConfig, want: true},
	}
	for _, tc := range cases {
		got, err := r.ValidateConfig(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
	if api.logins.Load() != 2 {
		t.Fatalf("expected 2 login calls, got %d", api.logins.Load())
	}
}

func TestSearchSkipsProtectedFiles(t *testing.T) {
	r, _ := newTestResolver(t)
	hits, err := r.Search(context.Background(), "Pelíšky", validConfig)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []domain.SearchHit{
		{ResolverID: "aa11", Title: "Pelisky.1999.1080p.mkv", DetailPageURL: r.baseURL + "/#/file/aa11/", Format: "mkv", Size: 4294967296},
		{ResolverID: "cc33", Title: "Pelisky CZ", DetailPageURL: r.baseURL + "/#/file/cc33/", Format: "mp4", Size: 1048576},
	}
	if diff := cmp.Diff(want, hits); diff != "" {
		t.Fatalf("hits mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFileLink(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	details, err := r.Resolve(ctx, "aa11", validConfig)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if details.Video != "https://vip.webshare.test/aa11/Pelisky.mkv" {
		t.Fatalf("unexpected video %q", details.Video)
	}

	if _, err := r.Resolve(ctx, "zz99", validConfig); !errors.Is(err, resolver.ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
}

func TestSearchWithRejectedLogin(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.Search(context.Background(), "x", domain.Configuration{usernameKey: "user", passwordKey: "bad"})
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}
