package fastshare

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
	"czstreams/internal/resolvers/common"
)

const (
	Name           = "Fastshare"
	DefaultBaseURL = "https://fastshare.cloud"

	// searchPages is how many result pages of nine items are fetched per term.
	searchPages = 7
	pageSize    = 9
)

type Config struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger
	// Enabled overrides Init. Playback works but seeking fails, so the
	// resolver stays out of the registry unless explicitly enabled.
	Enabled bool
}

type Resolver struct {
	baseURL   string
	client    *http.Client
	userAgent string
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
		logger:    logger.With(slog.String("resolver", Name)),
		enabled:   cfg.Enabled,
	}
}

func (r *Resolver) Name() string { return Name }

func (r *Resolver) Init() bool { return r.enabled }

func (r *Resolver) ConfigFields() []domain.ConfigField { return nil }

func (r *Resolver) ValidateConfig(context.Context, domain.Configuration) (bool, error) {
	return true, nil
}

func (r *Resolver) Search(ctx context.Context, term string, _ domain.Configuration) ([]domain.SearchHit, error) {
	token, err := r.searchToken(ctx, term)
	if err != nil {
		return nil, err
	}

	pages := make([][]domain.SearchHit, searchPages)
	group, groupCtx := errgroup.WithContext(ctx)
	for page := 0; page < searchPages; page++ {
		group.Go(func() error {
			hits, err := r.searchPage(groupCtx, term, token, page)
			if err != nil {
				return err
			}
			pages[page] = hits
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0)
	for _, page := range pages {
		hits = append(hits, page...)
	}
	return hits, nil
}

// searchToken reads the per-search token from the landing page. A random
// token is accepted by the site when the field is missing.
func (r *Resolver) searchToken(ctx context.Context, term string) (string, error) {
	_, body, err := common.Get(ctx, r.client, r.baseURL+"/"+url.PathEscape(term)+"/s", r.userAgent, nil)
	if err != nil {
		return "", fmt.Errorf("fastshare: search page: %w", err)
	}
	doc, err := common.ParseDocument(body)
	if err != nil {
		return "", err
	}
	if token := common.Attr(doc.Selection, "#search_token", "value"); token != "" {
		return token, nil
	}
	return strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

func (r *Resolver) searchPage(ctx context.Context, term, token string, page int) ([]domain.SearchHit, error) {
	params := url.Values{
		"token":             {token},
		"u":                 {""},
		"term":              {base64.StdEncoding.EncodeToString([]byte(term))},
		"search_purpose":    {"0"},
		"search_resolution": {"0"},
		"plain_search":      {"0"},
		"limit":             {strconv.Itoa(1 + page*pageSize)},
		"order":             {"3"},
		"type":              {"video"},
		"step":              {"3"},
	}
	_, body, err := common.Get(ctx, r.client, r.baseURL+"/test2.php?"+params.Encode(), r.userAgent, nil)
	if err != nil {
		return nil, fmt.Errorf("fastshare: results page %d: %w", page, err)
	}
	// The endpoint returns bare <li> fragments.
	doc, err := common.ParseDocument([]byte("<html><body><ul>" + string(body) + "</ul></body></html>"))
	if err != nil {
		return nil, err
	}

	var hits []domain.SearchHit
	doc.Find("ul > li").Each(func(_ int, item *goquery.Selection) {
		detail := item.Find(".video_detail").First()
		if detail.Length() == 0 || item.Find(".playable").Length() == 0 {
			return
		}
		link := detail.Find("a").First()
		href := common.AbsoluteURL(r.baseURL+"/", common.Attr(link, "", "href"))
		if href == "" {
			return
		}
		times := detail.Find(".video_time")
		hits = append(hits, domain.SearchHit{
			ResolverID:    href,
			Title:         strings.Join(strings.Fields(link.Text()), " "),
			DetailPageURL: href,
			Duration:      common.TimeToSeconds(times.Eq(0).Text()),
			Format:        strings.TrimSpace(times.Eq(1).Text()),
			Size:          common.ParseHumanSize(common.Text(detail, ".pull-right")),
		})
	})
	return hits, nil
}

func (r *Resolver) Resolve(ctx context.Context, resolverID string, _ domain.Configuration) (domain.StreamDetails, error) {
	detailURL, err := common.SiteURL(r.baseURL+"/", resolverID)
	if err != nil {
		return domain.StreamDetails{}, fmt.Errorf("fastshare: %w", err)
	}
	_, body, err := common.Get(ctx, r.client, detailURL, r.userAgent, nil)
	if err != nil {
		return domain.StreamDetails{}, fmt.Errorf("fastshare: detail page: %w", err)
	}
	doc, err := common.ParseDocument(body)
	if err != nil {
		return domain.StreamDetails{}, err
	}

	type source struct {
		src   string
		width int
	}
	var sources []source
	doc.Find("video source").Each(func(_ int, el *goquery.Selection) {
		src := common.Attr(el, "", "src")
		if src == "" {
			return
		}
		width, _ := strconv.Atoi(common.Attr(el, "", "width"))
		sources = append(sources, source{src: src, width: width})
	})
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].width > sources[j].width })

	video := ""
	if len(sources) > 0 {
		video = sources[0].src
	} else if action := common.Attr(doc.Selection, "form#form", "action"); action != "" {
		video = action
	}
	if video == "" {
		return domain.StreamDetails{}, fmt.Errorf("fastshare: %s: %w", resolverID, resolver.ErrNoVideo)
	}

	title := common.Attr(doc.Selection, `meta[name="description"]`, "content")
	title = strings.TrimSpace(strings.ReplaceAll(title, "online ke zhlédnutí a stažení", ""))
	return domain.StreamDetails{
		Video:         common.AbsoluteURL(detailURL, video),
		Title:         title,
		DetailPageURL: detailURL,
	}, nil
}
