package apihttp

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

	"czstreams/internal/domain"
	"czstreams/internal/history"
	"czstreams/internal/resolvers/common"
)

const (
	addonID   = "community.czstreams"
	addonName = "CzStreams"
	addonLogo = "https://play-lh.googleusercontent.com/qDMsLq4DWg_OHEX6YZvM1FRKnSmUhzYH-rYbWi4QBosX9xTDpO8hRUC-oPtNt6hoFX0=w256-h256-rw"
)

type manifest struct {
	ID            string               `json:"id"`
	Version       string               `json:"version"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Logo          string               `json:"logo,omitempty"`
	Catalogs      []any                `json:"catalogs"`
	Resources     []string             `json:"resources"`
	Types         []string             `json:"types"`
	IDPrefixes    []string             `json:"idPrefixes"`
	BehaviorHints manifestHints        `json:"behaviorHints"`
	Config        []domain.ConfigField `json:"config"`
}

type manifestHints struct {
	Configurable          bool `json:"configurable"`
	ConfigurationRequired bool `json:"configurationRequired"`
}

type stremioSubtitle struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

type stremioStream struct {
	URL           string            `json:"url"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Subtitles     []stremioSubtitle `json:"subtitles,omitempty"`
	BehaviorHints map[string]any    `json:"behaviorHints"`
}

// Manifest describes the addon with the config fields of every registered
// resolver.
func (s *Server) Manifest() any {
	fields := s.registry.ConfigFields()
	if fields == nil {
		fields = []domain.ConfigField{}
	}
	return manifest{
		ID:          addonID,
		Version:     s.version,
		Name:        addonName,
		Description: "Streams from Czech and Slovak file hosting sites.",
		Logo:        addonLogo,
		Catalogs:    []any{},
		Resources:   []string{"stream"},
		Types:       []string{string(domain.MediaTypeMovie), string(domain.MediaTypeSeries)},
		IDPrefixes:  []string{"tt"},
		BehaviorHints: manifestHints{
			Configurable:          true,
			ConfigurationRequired: true,
		},
		Config: fields,
	}
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Manifest())
}

// handleStream never fails towards the client: any error yields an empty
// stream list.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	mediaType := domain.MediaType(r.PathValue("type"))
	id := strings.TrimSuffix(r.PathValue("id"), ".json")

	cfg, err := DecodeConfig(r.PathValue("config"))
	if err != nil {
		s.logger.Warn("invalid addon config", slog.String("error", err.Error()))
		writeStreams(w, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.streamTimeout)
	defer cancel()
	streams, err := s.Streams(ctx, mediaType, id, cfg)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "stream request failed",
			slog.String("type", string(mediaType)),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeStreams(w, nil)
		return
	}
	writeStreams(w, streams)
}

func writeStreams(w http.ResponseWriter, streams []stremioStream) {
	if streams == nil {
		streams = []stremioStream{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": streams})
}

// Streams runs the full pipeline for one Stremio request: metadata lookup,
// engine run and conversion into Stremio streams.
func (s *Server) Streams(ctx context.Context, mediaType domain.MediaType, id string, cfg domain.Configuration) ([]stremioStream, error) {
	if s.metadata == nil {
		return nil, errors.New("metadata service is not configured")
	}
	meta, err := s.metadata.Lookup(ctx, mediaType, id)
	if err != nil {
		return nil, fmt.Errorf("metadata %s/%s: %w", mediaType, id, err)
	}

	lookup := s.engine.Run(ctx, meta, s.registry.Resolvers(), cfg)
	streams := make([]stremioStream, 0, len(lookup.Streams))
	for _, item := range lookup.Streams {
		streams = append(streams, s.toStremio(item, cfg))
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	s.history.Record(recordCtx, history.Lookup{
		Meta:      meta,
		MetaID:    id,
		Terms:     lookup.Terms,
		Resolvers: lookup.Resolvers,
		Streams:   len(streams),
		Elapsed:   lookup.Elapsed,
	})
	return streams, nil
}

func (s *Server) toStremio(item domain.ResolvedStream, cfg domain.Configuration) stremioStream {
	hints := map[string]any{
		"videoSize":  item.Size,
		"bingeGroup": item.ResolverName + "-" + item.ResolverID,
	}
	for key, value := range item.BehaviorHints {
		hints[key] = value
	}
	hints["filename"] = item.Title

	stream := stremioStream{
		URL:           item.Video,
		Name:          fmt.Sprintf("%s, (%s)", item.ResolverName, common.BytesToSize(item.Size)),
		Description:   item.Title,
		BehaviorHints: hints,
	}
	if s.mediaRedirect {
		stream.URL = s.mediaURL(item.ResolverName, item.ResolverID, cfg)
	}
	for _, sub := range item.Subtitles {
		stream.Subtitles = append(stream.Subtitles, stremioSubtitle(sub))
	}
	return stream
}

// mediaURL points at /media, which resolves the item again on playback.
func (s *Server) mediaURL(resolverName, resolverID string, cfg domain.Configuration) string {
	out := s.publicURL + "/media/" + url.PathEscape(resolverName) + "/" + url.PathEscape(resolverID)
	if len(cfg) == 0 {
		return out
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return out
	}
	return out + "?" + url.Values{"config": {string(payload)}}.Encode()
}

// DecodeConfig reads the user configuration Stremio embeds in the addon
// URL: a JSON object, possibly still URL-encoded. Non-string values are
// kept in their printed form.
func DecodeConfig(raw string) (domain.Configuration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Configuration{}, nil
	}
	if !strings.HasPrefix(raw, "{") {
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg := make(domain.Configuration, len(values))
	for key, value := range values {
		switch typed := value.(type) {
		case nil:
		case string:
			cfg[key] = typed
		default:
			cfg[key] = fmt.Sprint(typed)
		}
	}
	return cfg, nil
}
