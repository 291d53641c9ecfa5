package sledujteto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
	"czstreams/internal/resolvers/common"
)

const (
	Name           = "SledujteTo"
	DefaultBaseURL = "https://www.sledujteto.cz"

	usernameKey = "sledujtetoUsername"
	passwordKey = "sledujtetoPassword"
)

type Config struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
	AuthTTL   time.Duration
	Logger    *slog.Logger
	// Enabled overrides Init. The player needs periodic keep-alive calls
	// with the playback position, which a plain stream URL cannot make.
	Enabled bool
}

type Resolver struct {
	baseURL   string
	client    *http.Client
	userAgent string
	sessions  *resolver.AuthCache[string]
	logger    *slog.Logger
	enabled   bool
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
		sessions:  resolver.NewAuthCache[string](cfg.AuthTTL),
		logger:    logger.With(slog.String("resolver", Name)),
		enabled:   cfg.Enabled,
	}
}

func (r *Resolver) Name() string { return Name }

func (r *Resolver) Init() bool { return r.enabled }

func (r *Resolver) ConfigFields() []domain.ConfigField {
	return []domain.ConfigField{
		{Key: usernameKey, Type: domain.FieldTypeText, Title: "SledujteTo username"},
		{Key: passwordKey, Type: domain.FieldTypePassword, Title: "SledujteTo password"},
	}
}

// ValidateConfig always reports false: streams stop after a few seconds
// without the keep-alive calls.
func (r *Resolver) ValidateConfig(context.Context, domain.Configuration) (bool, error) {
	return false, nil
}

func (r *Resolver) headers() http.Header {
	return http.Header{
		"Accept":  {"application/json"},
		"Referer": {r.baseURL + "/"},
	}
}

func (r *Resolver) cookies(ctx context.Context, cfg domain.Configuration) (string, error) {
	username, password := cfg.Get(usernameKey), cfg.Get(passwordKey)
	return r.sessions.Get(ctx, username, password, func(ctx context.Context) (string, error) {
		return r.login(ctx, username, password)
	})
}

// login collects session cookies, anonymously from the home page or through
// the account form.
func (r *Resolver) login(ctx context.Context, username, password string) (string, error) {
	client, jar := common.WithCookieJar(r.client)
	base, err := url.Parse(r.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("sledujteto: base url: %w", err)
	}
	if username == "" {
		if _, _, err := common.Get(ctx, client, r.baseURL+"/", r.userAgent, r.headers()); err != nil {
			return "", fmt.Errorf("sledujteto: anonymous session: %w", err)
		}
		return common.CookieHeader(jar.Cookies(base)), nil
	}

	form := url.Values{
		"email":    {username},
		"password": {password},
		"remember": {"1"},
		"login":    {"Přihlásit"},
		"form_id":  {"Form_Login"},
		"model_id": {"0"},
	}
	if _, _, err := common.PostForm(ctx, client, r.baseURL+"/account/login/", r.userAgent, form, r.headers()); err != nil {
		return "", fmt.Errorf("sledujteto: login: %w", err)
	}
	r.logger.Info("logged in", slog.String("username", username))
	return common.CookieHeader(jar.Cookies(base)), nil
}

func (r *Resolver) authorized(ctx context.Context, cfg domain.Configuration) (http.Header, error) {
	cookies, err := r.cookies(ctx, cfg)
	if err != nil {
		return nil, err
	}
	headers := r.headers()
	if cookies != "" {
		headers.Set("Cookie", cookies)
	}
	return headers, nil
}

type filesResponse struct {
	Error string `json:"error"`
	Files []struct {
		ID              any    `json:"id"`
		Filename        string `json:"filename"`
		FullURL         string `json:"full_url"`
		MovieDuration   string `json:"movie_duration"`
		MovieResolution string `json:"movie_resolution"`
		Filesize        any    `json:"filesize"`
	} `json:"files"`
}

func (r *Resolver) Search(ctx context.Context, term string, cfg domain.Configuration) ([]domain.SearchHit, error) {
	headers, err := r.authorized(ctx, cfg)
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"query":      {term},
		"limit":      {"32"},
		"page":       {"1"},
		"sort":       {"relevance"},
		"collection": {""},
	}
	_, body, err := common.Get(ctx, r.client, r.baseURL+"/services/get-files?"+params.Encode(), r.userAgent, headers)
	if err != nil {
		return nil, fmt.Errorf("sledujteto: search: %w", err)
	}

	var resp filesResponse
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("sledujteto: decode search: %w", err)
	}
	if resp.Error != "" {
		r.logger.Debug("search rejected", slog.String("term", term), slog.String("error", resp.Error))
		return []domain.SearchHit{}, nil
	}

	hits := make([]domain.SearchHit, 0, len(resp.Files))
	for _, file := range resp.Files {
		id := jsonField(file.ID)
		if id == "" {
			continue
		}
		hits = append(hits, domain.SearchHit{
			ResolverID:    id,
			Title:         file.Filename,
			DetailPageURL: file.FullURL,
			Duration:      common.TimeToSeconds(file.MovieDuration),
			Format:        file.MovieResolution,
			Size:          common.ParseHumanSize(jsonField(file.Filesize)),
		})
	}
	return hits, nil
}

func jsonField(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (r *Resolver) Resolve(ctx context.Context, resolverID string, cfg domain.Configuration) (domain.StreamDetails, error) {
	headers, err := r.authorized(ctx, cfg)
	if err != nil {
		return domain.StreamDetails{}, err
	}
	payload, err := json.Marshal(map[string]any{"params": map[string]string{"id": resolverID}})
	if err != nil {
		return domain.StreamDetails{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/services/add-file-link", bytes.NewReader(payload))
	if err != nil {
		return domain.StreamDetails{}, err
	}
	for key, values := range headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	common.ApplyBrowserHeaders(req, r.userAgent)
	_, body, err := common.Fetch(r.client, req)
	if err != nil {
		return domain.StreamDetails{}, fmt.Errorf("sledujteto: add-file-link: %w", err)
	}

	var link struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(body, &link); err != nil {
		return domain.StreamDetails{}, fmt.Errorf("sledujteto: decode add-file-link: %w", err)
	}
	if strings.TrimSpace(link.Hash) == "" {
		return domain.StreamDetails{}, fmt.Errorf("sledujteto: %s: %w", resolverID, resolver.ErrNoVideo)
	}

	proxied := make(map[string]string, len(headers))
	for key := range headers {
		proxied[key] = headers.Get(key)
	}
	return domain.StreamDetails{
		Video: r.baseURL + "/player/index/sledujteto/" + url.PathEscape(link.Hash),
		BehaviorHints: map[string]any{
			"notWebReady":  true,
			"proxyHeaders": map[string]any{"request": proxied},
		},
	}, nil
}

func (r *Resolver) Cleanup(context.Context) error {
	r.sessions.Clear()
	return nil
}

func (r *Resolver) Debug() any {
	return map[string]any{"sessions": r.sessions.Snapshot()}
}
