package prehrajto

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
	"czstreams/internal/resolvers/common"
)

const (
	Name           = "PrehrajTo"
	DefaultBaseURL = "https://prehraj.to"

	usernameKey = "prehrajtoUsername"
	passwordKey = "prehrajtoPassword"
)

var ErrLoginFailed = errors.New("prehrajto: login rejected")

type Config struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
	AuthTTL   time.Duration
	Logger    *slog.Logger
}

// Resolver searches and plays videos from prehraj.to. A logged-in session
// is required for full-length playback.
type Resolver struct {
	baseURL   string
	client    *http.Client
	userAgent string
	sessions  *resolver.AuthCache[session]
	logger    *slog.Logger
}

type session struct {
	cookies string
}

func New(cfg Config) *Resolver {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = common.NewHTTPClient(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		baseURL:   baseURL,
		client:    client,
		userAgent: cfg.UserAgent,
		sessions:  resolver.NewAuthCache[session](cfg.AuthTTL),
		logger:    logger.With(slog.String("resolver", Name)),
	}
}

func (r *Resolver) Name() string { return Name }

func (r *Resolver) Init() bool { return true }

func (r *Resolver) ConfigFields() []domain.ConfigField {
	return []domain.ConfigField{
		{Key: usernameKey, Type: domain.FieldTypeText, Title: "PrehrajTo username"},
		{Key: passwordKey, Type: domain.FieldTypePassword, Title: "PrehrajTo password"},
	}
}

func (r *Resolver) ValidateConfig(ctx context.Context, cfg domain.Configuration) (bool, error) {
	if cfg.Get(usernameKey) == "" || cfg.Get(passwordKey) == "" {
		return false, nil
	}
	if _, err := r.session(ctx, cfg); err != nil {
		if errors.Is(err, ErrLoginFailed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Resolver) session(ctx context.Context, cfg domain.Configuration) (session, error) {
	username, password := cfg.Get(usernameKey), cfg.Get(passwordKey)
	return r.sessions.Get(ctx, username, password, func(ctx context.Context) (session, error) {
		return r.login(ctx, username, password)
	})
}

// login bootstraps anonymous cookies from the home page and, with
// credentials, submits the login form. A successful login sets access_token.
func (r *Resolver) login(ctx context.Context, username, password string) (session, error) {
	client, jar := common.WithCookieJar(r.client)
	base, err := url.Parse(r.baseURL + "/")
	if err != nil {
		return session{}, fmt.Errorf("prehrajto: base url: %w", err)
	}
	jar.SetCookies(base, []*http.Cookie{{Name: "AC", Value: "C", Path: "/"}})

	if _, _, err := common.Get(ctx, client, r.baseURL+"/", r.userAgent, r.headers()); err != nil {
		return session{}, fmt.Errorf("prehrajto: anonymous session: %w", err)
	}
	if username == "" {
		return session{cookies: common.CookieHeader(jar.Cookies(base))}, nil
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	fields := [][2]string{
		{"email", username},
		{"password", password},
		{"remember_login", "on"},
		{"_do", "loginDialog-login-loginForm-submit"},
		{"login", "Přihlásit se"},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return session{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/?frm=loginDialog-login-loginForm", &form)
	if err != nil {
		return session{}, err
	}
	for key, values := range r.headers() {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	common.ApplyBrowserHeaders(req, r.userAgent)
	if _, _, err := common.Fetch(client, req); err != nil {
		return session{}, fmt.Errorf("prehrajto: login: %w", err)
	}

	cookies := jar.Cookies(base)
	for _, cookie := range cookies {
		if cookie.Name == "access_token" {
			r.logger.Info("logged in", slog.String("username", username))
			return session{cookies: common.CookieHeader(cookies)}, nil
		}
	}
	return session{}, ErrLoginFailed
}

func (r *Resolver) headers() http.Header {
	return http.Header{
		"Accept":           {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
		"X-Requested-With": {"XMLHttpRequest"},
		"Referer":          {r.baseURL + "/"},
	}
}

func (r *Resolver) authorized(ctx context.Context, cfg domain.Configuration) (http.Header, error) {
	sess, err := r.session(ctx, cfg)
	if err != nil {
		return nil, err
	}
	headers := r.headers()
	if sess.cookies != "" {
		headers.Set("Cookie", sess.cookies)
	}
	return headers, nil
}

func (r *Resolver) Search(ctx context.Context, term string, cfg domain.Configuration) ([]domain.SearchHit, error) {
	headers, err := r.authorized(ctx, cfg)
	if err != nil {
		return nil, err
	}
	searchURL := r.baseURL + "/hledej/" + url.PathEscape(term) + "?vp-page=0"
	_, body, err := common.Get(ctx, r.client, searchURL, r.userAgent, headers)
	if err != nil {
		return nil, fmt.Errorf("prehrajto: search: %w", err)
	}
	return r.parseSearch(body)
}

func (r *Resolver) parseSearch(body []byte) ([]domain.SearchHit, error) {
	doc, err := common.ParseDocument(body)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.SearchHit, 0)
	doc.Find("a.video--link").Each(func(_ int, link *goquery.Selection) {
		path := common.Attr(link, "", "href")
		if path == "" {
			return
		}
		hits = append(hits, domain.SearchHit{
			ResolverID:    path,
			Title:         common.Attr(link, "", "title"),
			DetailPageURL: r.baseURL + path,
			Duration:      common.TimeToSeconds(common.Text(link, ".video__tag--time")),
			Format:        formatFromIcon(link),
			Size:          common.ParseHumanSize(common.Text(link, ".video__tag--size")),
		})
	})
	return hits, nil
}

// formatFromIcon reads the container format from the svg icon reference,
// e.g. "#icon-mp4" gives "mp4".
func formatFromIcon(link *goquery.Selection) string {
	use := link.Find(".video__tag--format use").First()
	ref, ok := use.Attr("xlink:href")
	if !ok {
		ref, _ = use.Attr("href")
	}
	ref = strings.TrimSpace(ref)
	if idx := strings.LastIndex(ref, "#"); idx >= 0 {
		ref = ref[idx+1:]
	}
	return strings.TrimPrefix(ref, "icon-")
}

func (r *Resolver) Resolve(ctx context.Context, resolverID string, cfg domain.Configuration) (domain.StreamDetails, error) {
	if !strings.HasPrefix(resolverID, "/") {
		return domain.StreamDetails{}, fmt.Errorf("prehrajto: %w: %q", common.ErrForeignURL, resolverID)
	}
	detailURL, err := common.SiteURL(r.baseURL+"/", resolverID)
	if err != nil {
		return domain.StreamDetails{}, fmt.Errorf("prehrajto: %w", err)
	}
	headers, err := r.authorized(ctx, cfg)
	if err != nil {
		return domain.StreamDetails{}, err
	}
	_, body, err := common.Get(ctx, r.client, detailURL, r.userAgent, headers)
	if err != nil {
		return domain.StreamDetails{}, fmt.Errorf("prehrajto: detail page: %w", err)
	}
	doc, err := common.ParseDocument(body)
	if err != nil {
		return domain.StreamDetails{}, err
	}

	script := ""
	doc.Find("script").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if text := el.Text(); strings.Contains(text, "sources =") {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return domain.StreamDetails{}, fmt.Errorf("prehrajto: %s: %w", resolverID, resolver.ErrNoVideo)
	}

	video := common.ScriptVideoURL(script)
	if video == "" {
		return domain.StreamDetails{}, fmt.Errorf("prehrajto: %s: %w", resolverID, resolver.ErrNoVideo)
	}

	var subtitles []domain.Subtitle
	for _, track := range common.ScriptObjects(script, "tracks") {
		if track["kind"] != "captions" || track["src"] == "" {
			continue
		}
		subtitles = append(subtitles, domain.Subtitle{
			ID:   track["label"],
			URL:  track["src"],
			Lang: track["srclang"],
		})
	}

	return domain.StreamDetails{
		Video:         video,
		Subtitles:     subtitles,
		DetailPageURL: detailURL,
	}, nil
}

func (r *Resolver) Cleanup(context.Context) error {
	r.sessions.Clear()
	return nil
}

func (r *Resolver) Debug() any {
	return map[string]any{"sessions": r.sessions.Snapshot()}
}
