package hellspy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
	"czstreams/internal/resolvers/common"
)

const (
	Name           = "HellspyTo"
	DefaultBaseURL = "https://www.hellspy.to"
)

// linksPattern matches the quality map embedded as an escaped JSON string in
// the video page's hydration payload.
var linksPattern = regexp.MustCompile(`(?i)\\"links\\":(\{.*?\})`)

type Config struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger
}

// Resolver uses the public Hellspy search API. No account is needed.
type Resolver struct {
	baseURL   string
	client    *http.Client
	userAgent string
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
		logger:    logger.With(slog.String("resolver", Name)),
	}
}

func (r *Resolver) Name() string { return Name }

func (r *Resolver) Init() bool { return true }

func (r *Resolver) ConfigFields() []domain.ConfigField { return nil }

func (r *Resolver) ValidateConfig(context.Context, domain.Configuration) (bool, error) {
	return true, nil
}

func (r *Resolver) headers(accept string) http.Header {
	return http.Header{
		"Accept":  {accept},
		"Referer": {r.baseURL + "/"},
	}
}

type searchResponse struct {
	Status  string `json:"status"`
	Payload struct {
		Data []searchItem `json:"data"`
	} `json:"payload"`
}

type searchItem struct {
	ID              any    `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Length          any    `json:"length"`
	MovieResolution string `json:"movie_resolution"`
	Size            any    `json:"size"`
}

// field renders a JSON value that the API sends either as a number or as a
// string.
func field(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (r *Resolver) Search(ctx context.Context, term string, _ domain.Configuration) ([]domain.SearchHit, error) {
	params := url.Values{"query": {term}, "offset": {"0"}}
	_, body, err := common.Get(ctx, r.client, r.baseURL+"/api/search?"+params.Encode(), r.userAgent, r.headers("application/json"))
	if err != nil {
		return nil, fmt.Errorf("hellspy: search: %w", err)
	}

	var resp searchResponse
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("hellspy: decode search: %w", err)
	}
	if resp.Status != "ok" {
		r.logger.Debug("search returned non-ok status", slog.String("status", resp.Status), slog.String("term", term))
		return []domain.SearchHit{}, nil
	}

	hits := make([]domain.SearchHit, 0, len(resp.Payload.Data))
	for _, item := range resp.Payload.Data {
		id := field(item.ID)
		if id == "" || item.Slug == "" {
			continue
		}
		resolverID := item.Slug + "/" + id
		length, _ := strconv.ParseFloat(field(item.Length), 64)
		size, _ := strconv.ParseInt(field(item.Size), 10, 64)
		hits = append(hits, domain.SearchHit{
			ResolverID:    resolverID,
			Title:         item.Name,
			DetailPageURL: r.baseURL + "/video/" + resolverID,
			Duration:      int(length),
			Format:        item.MovieResolution,
			Size:          size,
		})
	}
	return hits, nil
}

func (r *Resolver) Resolve(ctx context.Context, resolverID string, _ domain.Configuration) (domain.StreamDetails, error) {
	detailURL := r.baseURL + "/video/" + resolverID
	_, body, err := common.Get(ctx, r.client, detailURL, r.userAgent, r.headers("text/html"))
	if err != nil {
		return domain.StreamDetails{}, fmt.Errorf("hellspy: detail page: %w", err)
	}

	video, err := bestLink(string(body))
	if err != nil {
		return domain.StreamDetails{}, fmt.Errorf("hellspy: %s: %w", resolverID, err)
	}
	return domain.StreamDetails{Video: video, DetailPageURL: detailURL}, nil
}

// bestLink picks the highest resolution from the escaped links map, e.g.
// {\"360\":\"https://...\",\"720\":\"https://...\"}.
func bestLink(page string) (string, error) {
	match := linksPattern.FindStringSubmatch(page)
	if len(match) < 2 {
		return "", resolver.ErrNoVideo
	}
	raw := strings.NewReplacer(`\\u0026`, "&", `\u0026`, "&", `\&`, "&", `\"`, `"`).Replace(match[1])

	var links map[string]string
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		return "", fmt.Errorf("decode links: %w", err)
	}

	type source struct {
		resolution int
		link       string
	}
	sources := make([]source, 0, len(links))
	for resolution, link := range links {
		if strings.TrimSpace(link) == "" {
			continue
		}
		value, _ := strconv.Atoi(strings.TrimRight(resolution, "pP"))
		sources = append(sources, source{resolution: value, link: link})
	}
	if len(sources) == 0 {
		return "", resolver.ErrNoVideo
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].resolution != sources[j].resolution {
			return sources[i].resolution > sources[j].resolution
		}
		return sources[i].link < sources[j].link
	})
	return sources[0].link, nil
}
