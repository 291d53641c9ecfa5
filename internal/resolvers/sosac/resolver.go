package sosac

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
	"czstreams/internal/resolvers/common"
)

const (
	Name           = "Sosac"
	DefaultBaseURL = "https://sosac.tv"
)

var (
	encPattern    = regexp.MustCompile(`data-enc=["']([A-Za-z0-9+/=\r\n]+)["']`)
	keyPattern    = regexp.MustCompile(`data-key=["']([^"']+)["']`)
	keyVarPattern = regexp.MustCompile(`var\s+key\s*=\s*'([^']+)'`)
	urlPattern    = regexp.MustCompile(`https?://[^\s'"]+`)
)

type Config struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger
}

// Resolver scrapes the sosac.tv catalogue. Player pages expose the video in
// a tag, in player setup code, or as an encrypted attribute.
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

func (r *Resolver) headers() http.Header {
	return http.Header{"Referer": {r.baseURL + "/"}}
}

func (r *Resolver) Search(ctx context.Context, term string, _ domain.Configuration) ([]domain.SearchHit, error) {
	searchURL := r.baseURL + "/search/?q=" + url.QueryEscape(term)
	_, body, err := common.Get(ctx, r.client, searchURL, r.userAgent, r.headers())
	if err != nil {
		return nil, fmt.Errorf("sosac: search: %w", err)
	}
	doc, err := common.ParseDocument(body)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0)
	seen := make(map[string]struct{})
	doc.Find(".video, .item, article, .search-result").Each(func(_ int, item *goquery.Selection) {
		link := item.Find("a[href]").First()
		path := common.Attr(link, "", "href")
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}

		title := common.Attr(link, "", "title")
		if title == "" {
			title = strings.Join(strings.Fields(link.Text()), " ")
		}
		if title == "" {
			title = common.Text(item, "h3")
		}
		hits = append(hits, domain.SearchHit{
			ResolverID:    path,
			Title:         title,
			DetailPageURL: common.AbsoluteURL(r.baseURL+"/", path),
			Duration:      common.TimeToSeconds(common.Text(item, ".duration, .time")),
			Size:          common.ParseHumanSize(common.Text(item, ".size, .video-size")),
		})
	})
	return hits, nil
}

func (r *Resolver) Resolve(ctx context.Context, resolverID string, _ domain.Configuration) (domain.StreamDetails, error) {
	detailURL, err := common.SiteURL(r.baseURL+"/", resolverID)
	if err != nil {
		return domain.StreamDetails{}, fmt.Errorf("sosac: %w", err)
	}
	_, body, err := common.Get(ctx, r.client, detailURL, r.userAgent, r.headers())
	if err != nil {
		return domain.StreamDetails{}, fmt.Errorf("sosac: detail page: %w", err)
	}
	doc, err := common.ParseDocument(body)
	if err != nil {
		return domain.StreamDetails{}, err
	}

	video := tagVideo(doc)
	if video == "" {
		video = scriptVideo(doc)
	}
	if video == "" {
		video = r.encryptedVideo(string(body))
	}
	if video == "" {
		return domain.StreamDetails{}, fmt.Errorf("sosac: %s: %w", resolverID, resolver.ErrNoVideo)
	}

	var subtitles []domain.Subtitle
	doc.Find("track[src]").Each(func(_ int, track *goquery.Selection) {
		lang := common.Attr(track, "", "srclang")
		id := common.Attr(track, "", "label")
		if id == "" {
			id = lang
		}
		if id == "" {
			id = "sub"
		}
		subtitles = append(subtitles, domain.Subtitle{
			ID:   id,
			URL:  common.AbsoluteURL(detailURL, common.Attr(track, "", "src")),
			Lang: lang,
		})
	})

	return domain.StreamDetails{
		Video:         common.AbsoluteURL(detailURL, video),
		Subtitles:     subtitles,
		DetailPageURL: detailURL,
	}, nil
}

func tagVideo(doc *goquery.Document) string {
	for _, selector := range []string{"video[src]", "video source[src]"} {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if src := common.Attr(el, "", "src"); src != "" {
			return src
		}
		if src := common.Attr(el, "", "data-src"); src != "" {
			return src
		}
	}
	return ""
}

func scriptVideo(doc *goquery.Document) string {
	video := ""
	doc.Find("script").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		video = common.ScriptVideoURL(el.Text())
		return video == ""
	})
	return video
}

// encryptedVideo decrypts a data-enc payload with the key from data-key or
// a "var key" declaration and extracts the first URL.
func (r *Resolver) encryptedVideo(page string) string {
	enc := encPattern.FindStringSubmatch(page)
	if enc == nil {
		return ""
	}
	key := keyPattern.FindStringSubmatch(page)
	if key == nil {
		key = keyVarPattern.FindStringSubmatch(page)
	}
	if key == nil {
		return ""
	}
	plain, err := decryptPassphrase(enc[1], key[1])
	if err != nil {
		r.logger.Debug("encrypted payload rejected", slog.String("error", err.Error()))
		return ""
	}
	return urlPattern.FindString(string(plain))
}
