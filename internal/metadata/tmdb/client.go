package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"czstreams/internal/resolvers/common"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultLanguage = "cs"
	redisCacheKey   = "czstreams:tmdb:"
)

type Client struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// FindResult is one movie or tv entry of the /find endpoint.
type FindResult struct {
	ID               int    `json:"id"`
	Title            string `json:"title,omitempty"`
	OriginalTitle    string `json:"original_title,omitempty"`
	Name             string `json:"name,omitempty"`
	OriginalName     string `json:"original_name,omitempty"`
	OriginalLanguage string `json:"original_language,omitempty"`
	ReleaseDate      string `json:"release_date,omitempty"`
	FirstAirDate     string `json:"first_air_date,omitempty"`
}

func (r FindResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

func (r FindResult) OriginalDisplayTitle() string {
	if r.OriginalTitle != "" {
		return r.OriginalTitle
	}
	return r.OriginalName
}

type findResponse struct {
	MovieResults []FindResult `json:"movie_results"`
	TVResults    []FindResult `json:"tv_results"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = common.NewHTTPClient(10 * time.Second)
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 7 * 24 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) Language() string {
	return c.language
}

// Find looks up an IMDb id. Movie results come before tv results.
func (c *Client) Find(ctx context.Context, imdbID, lang string) ([]FindResult, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if lang == "" {
		lang = c.language
	}
	imdbID = strings.TrimSpace(imdbID)
	cacheKey := fmt.Sprintf("find:%s:%s", imdbID, lang)

	if c.redis != nil {
		data, err := c.redis.Get(ctx, redisCacheKey+cacheKey).Bytes()
		if err == nil {
			var results []FindResult
			if json.Unmarshal(data, &results) == nil {
				return results, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("tmdb cache read failed", slog.String("error", err.Error()))
		}
	}

	params := url.Values{
		"api_key":         {c.apiKey},
		"external_source": {"imdb_id"},
		"language":        {lang},
	}
	reqURL := c.baseURL + "/find/" + url.PathEscape(imdbID) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	_, body, err := common.Fetch(c.http, req)
	if err != nil {
		return nil, fmt.Errorf("tmdb: %w", err)
	}

	var response findResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("tmdb: decode find: %w", err)
	}
	results := make([]FindResult, 0, len(response.MovieResults)+len(response.TVResults))
	results = append(results, response.MovieResults...)
	results = append(results, response.TVResults...)

	if c.redis != nil {
		if data, err := json.Marshal(results); err == nil {
			_ = c.redis.Set(ctx, redisCacheKey+cacheKey, data, c.cacheTTL).Err()
		}
	}
	return results, nil
}

// LocalizedNames returns the title in lang plus the original title keyed by
// its original language. When the original language equals lang the
// original title wins. A disabled client or no match yields nil.
func (c *Client) LocalizedNames(ctx context.Context, imdbID, lang string) (map[string]string, error) {
	if lang == "" {
		lang = c.Language()
	}
	results, err := c.Find(ctx, imdbID, lang)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	first := results[0]
	names := make(map[string]string, 2)
	if title := strings.TrimSpace(first.DisplayTitle()); title != "" {
		names[lang] = title
	}
	original := strings.TrimSpace(first.OriginalDisplayTitle())
	origLang := strings.TrimSpace(first.OriginalLanguage)
	if original != "" && origLang != "" {
		names[origLang] = original
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}
