package cinemeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"czstreams/internal/domain"
	"czstreams/internal/resolvers/common"
)

const defaultBaseURL = "https://v3-cinemeta.strem.io"

var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrNotFound        = errors.New("metadata not found")
)

type Config struct {
	BaseURL string
	Client  *http.Client
}

// Client reads title metadata from the Stremio Cinemeta addon.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = common.NewHTTPClient(0)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type metaResponse struct {
	Meta *struct {
		ID       string `json:"id"`
		IMDBID   string `json:"imdb_id"`
		Type     string `json:"type"`
		Name     string `json:"name"`
		Released string `json:"released"`
		Year     string `json:"year"`
	} `json:"meta"`
}

// ParseID splits a Stremio id. Series ids carry the episode as
// "tt0123456:season:episode".
func ParseID(mediaType domain.MediaType, id string) (string, *domain.Episode, error) {
	id = strings.TrimSpace(id)
	if mediaType != domain.MediaTypeSeries {
		return id, nil, nil
	}
	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return parts[0], nil, nil
	}
	season, err := strconv.Atoi(parts[1])
	if err != nil || season < 0 {
		return "", nil, fmt.Errorf("invalid season in %q", id)
	}
	number, err := strconv.Atoi(parts[2])
	if err != nil || number <= 0 {
		return "", nil, fmt.Errorf("invalid episode in %q", id)
	}
	return parts[0], &domain.Episode{Season: season, Number: number}, nil
}

// Meta fetches the canonical metadata for a Stremio (type, id) pair. Only
// movie and series are supported.
func (c *Client) Meta(ctx context.Context, mediaType domain.MediaType, id string) (domain.Metadata, error) {
	if mediaType != domain.MediaTypeMovie && mediaType != domain.MediaTypeSeries {
		return domain.Metadata{}, fmt.Errorf("cinemeta %s: %w", mediaType, ErrUnsupportedType)
	}
	imdbID, episode, err := ParseID(mediaType, id)
	if err != nil {
		return domain.Metadata{}, err
	}
	if imdbID == "" {
		return domain.Metadata{}, fmt.Errorf("cinemeta: empty id: %w", ErrNotFound)
	}

	reqURL := c.baseURL + "/meta/" + url.PathEscape(string(mediaType)) + "/" + url.PathEscape(imdbID) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.Metadata{}, err
	}
	req.Header.Set("Accept", "application/json")
	_, body, err := common.Fetch(c.http, req)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("cinemeta: %w", err)
	}

	var payload metaResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Metadata{}, fmt.Errorf("cinemeta: decode %s: %w", imdbID, err)
	}
	if payload.Meta == nil || strings.TrimSpace(payload.Meta.Name) == "" {
		return domain.Metadata{}, fmt.Errorf("cinemeta %s/%s: %w", mediaType, imdbID, ErrNotFound)
	}

	meta := domain.Metadata{
		ID:       imdbID,
		Type:     mediaType,
		Name:     strings.TrimSpace(payload.Meta.Name),
		Released: payload.Meta.Released,
	}
	if meta.Released == "" && len(payload.Meta.Year) >= 4 {
		meta.Released = payload.Meta.Year[:4]
	}
	meta.Episode = episode
	return meta, nil
}
