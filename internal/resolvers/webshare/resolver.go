package webshare

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"errors"
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
	Name           = "WebShare"
	DefaultBaseURL = "https://webshare.cz"

	usernameKey = "webshareUsername"
	passwordKey = "websharePassword"

	statusOK = "OK"
)

var ErrLoginFailed = errors.New("webshare: login rejected")

type Config struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
	AuthTTL   time.Duration
	Logger    *slog.Logger
}

// Resolver talks to the Webshare XML API. Every call needs a wst token
// obtained by logging in with a salted password hash.
type Resolver struct {
	baseURL   string
	client    *http.Client
	userAgent string
	tokens    *resolver.AuthCache[string]
	logger    *slog.Logger
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
		tokens:    resolver.NewAuthCache[string](cfg.AuthTTL),
		logger:    logger.With(slog.String("resolver", Name)),
	}
}

func (r *Resolver) Name() string { return Name }

func (r *Resolver) Init() bool { return true }

func (r *Resolver) ConfigFields() []domain.ConfigField {
	return []domain.ConfigField{
		{Key: usernameKey, Type: domain.FieldTypeText, Title: "Webshare username"},
		{Key: passwordKey, Type: domain.FieldTypePassword, Title: "Webshare password"},
	}
}

func (r *Resolver) ValidateConfig(ctx context.Context, cfg domain.Configuration) (bool, error) {
	if cfg.Get(usernameKey) == "" || cfg.Get(passwordKey) == "" {
		return false, nil
	}
	if _, err := r.token(ctx, cfg); err != nil {
		if errors.Is(err, ErrLoginFailed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type saltResponse struct {
	Status string `xml:"status"`
	Salt   string `xml:"salt"`
}

type loginResponse struct {
	Status string `xml:"status"`
	Token  string `xml:"token"`
}

type searchResponse struct {
	Status string `xml:"status"`
	Files  []struct {
		Ident    string `xml:"ident"`
		Name     string `xml:"name"`
		Type     string `xml:"type"`
		Size     string `xml:"size"`
		Password string `xml:"password"`
	} `xml:"file"`
}

type linkResponse struct {
	Status string `xml:"status"`
	Link   string `xml:"link"`
}

func (r *Resolver) token(ctx context.Context, cfg domain.Configuration) (string, error) {
	username, password := cfg.Get(usernameKey), cfg.Get(passwordKey)
	return r.tokens.Get(ctx, username, password, func(ctx context.Context) (string, error) {
		return r.login(ctx, username, password)
	})
}

func (r *Resolver) login(ctx context.Context, username, password string) (string, error) {
	var salt saltResponse
	if err := r.call(ctx, "/api/salt/", url.Values{"username_or_email": {username}}, &salt); err != nil {
		return "", err
	}
	if salt.Status != statusOK || salt.Salt == "" {
		return "", ErrLoginFailed
	}

	digest := sha1.Sum([]byte(md5crypt(password, salt.Salt)))
	form := url.Values{
		"username_or_email": {username},
		"password":          {hex.EncodeToString(digest[:])},
		"keep_logged_in":    {"1"},
	}
	var login loginResponse
	if err := r.call(ctx, "/api/login/", form, &login); err != nil {
		return "", err
	}
	if login.Status != statusOK || login.Token == "" {
		return "", ErrLoginFailed
	}
	r.logger.Info("logged in", slog.String("username", username))
	return login.Token, nil
}

func (r *Resolver) call(ctx context.Context, path string, form url.Values, out any) error {
	headers := http.Header{
		"Accept":  {"application/xml"},
		"Referer": {r.baseURL + "/"},
	}
	_, body, err := common.PostForm(ctx, r.client, r.baseURL+path, r.userAgent, form, headers)
	if err != nil {
		return fmt.Errorf("webshare: %s: %w", path, err)
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("webshare: decode %s: %w", path, err)
	}
	return nil
}

func (r *Resolver) Search(ctx context.Context, term string, cfg domain.Configuration) ([]domain.SearchHit, error) {
	wst, err := r.token(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	form := url.Values{"what": {term}, "category": {"video"}, "wst": {wst}}
	if err := r.call(ctx, "/api/search/", form, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusOK {
		return nil, fmt.Errorf("webshare: search status %q", resp.Status)
	}

	hits := make([]domain.SearchHit, 0, len(resp.Files))
	for _, file := range resp.Files {
		if strings.TrimSpace(file.Password) != "0" || file.Ident == "" {
			continue
		}
		hits = append(hits, domain.SearchHit{
			ResolverID:    file.Ident,
			Title:         strings.TrimSpace(file.Name),
			DetailPageURL: r.baseURL + "/#/file/" + file.Ident + "/",
			Format:        strings.TrimSpace(file.Type),
			Size:          common.ParseHumanSize(file.Size),
		})
	}
	return hits, nil
}

func (r *Resolver) Resolve(ctx context.Context, resolverID string, cfg domain.Configuration) (domain.StreamDetails, error) {
	wst, err := r.token(ctx, cfg)
	if err != nil {
		return domain.StreamDetails{}, err
	}
	var resp linkResponse
	form := url.Values{"ident": {resolverID}, "category": {"video"}, "wst": {wst}}
	if err := r.call(ctx, "/api/file_link/", form, &resp); err != nil {
		return domain.StreamDetails{}, err
	}
	link := strings.TrimSpace(resp.Link)
	if resp.Status != statusOK || link == "" {
		return domain.StreamDetails{}, fmt.Errorf("webshare: %s status %q: %w", resolverID, resp.Status, resolver.ErrNoVideo)
	}
	return domain.StreamDetails{Video: link}, nil
}

func (r *Resolver) Cleanup(context.Context) error {
	r.tokens.Clear()
	return nil
}

func (r *Resolver) Debug() any {
	return map[string]any{"tokens": r.tokens.Snapshot()}
}
