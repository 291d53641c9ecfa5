package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"czstreams/internal/resolver"
)

const testDefaultQuery = "harry potter a kámen mudrců"

// handleMedia resolves one item at playback time and redirects to the video.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	resolverName := r.PathValue("resolver")
	resolverID := r.PathValue("id")

	cfg, err := DecodeConfig(r.URL.Query().Get("config"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid config")
		return
	}
	item, err := s.registry.Lookup(resolverName)
	if err != nil {
		s.logger.Warn("media request for inactive resolver", slog.String("resolver", resolverName))
		writeError(w, http.StatusInternalServerError, "unknown_resolver", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.streamTimeout)
	defer cancel()
	details, err := item.Resolve(ctx, resolverID, cfg)
	if err == nil && details.Video == "" {
		err = resolver.ErrNoVideo
	}
	if err != nil {
		s.logger.Warn("media resolve failed",
			slog.String("resolver", item.Name()),
			slog.String("resolverId", resolverID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "resolve_failed", err.Error())
		return
	}
	http.Redirect(w, r, details.Video, http.StatusMovedPermanently)
}

// handleTest runs one resolver end to end and reports every step as plain
// text: media path, result count, first hit, video URL and a range probe.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	term := strings.TrimSpace(query.Get("q"))
	if term == "" {
		term = testDefaultQuery
	}
	resolverName := strings.TrimSpace(query.Get("resolver"))
	if resolverName == "" {
		resolverName = "PrehrajTo"
	}
	cfg, err := DecodeConfig(query.Get("config"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid config")
		return
	}
	item, err := s.registry.Lookup(resolverName)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_resolver", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.streamTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	report := &testReport{w: w}

	results, err := item.Search(ctx, term, cfg)
	if err != nil {
		report.fail("search", err)
		return
	}
	if len(results) == 0 {
		report.line("Results: 0")
		report.end("No results found")
		return
	}
	first := results[0]
	report.line("/media/" + url.PathEscape(item.Name()) + "/" + url.PathEscape(first.ResolverID))
	report.line(fmt.Sprintf("Results: %d", len(results)))
	if payload, err := json.Marshal(first); err == nil {
		report.line(string(payload))
	}

	details, err := item.Resolve(ctx, first.ResolverID, cfg)
	if err != nil {
		report.fail("resolve", err)
		return
	}
	report.line("Video URL: " + details.Video)

	status, headers, err := s.probe(ctx, details.Video, details.BehaviorHints)
	if err != nil {
		report.fail("probe", err)
		return
	}
	if status >= http.StatusBadRequest {
		if payload, err := json.Marshal(headers); err == nil {
			report.line(string(payload))
		}
		report.end(fmt.Sprintf("Response: %d", status))
		return
	}
	report.end(fmt.Sprintf("OK: %d", status))
}

// probe requests the first KiB of the video, forwarding proxy headers the
// resolver asked for.
func (s *Server) probe(ctx context.Context, videoURL string, hints map[string]any) (int, http.Header, error) {
	if videoURL == "" {
		return 0, nil, resolver.ErrNoVideo
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Range", "bytes=0-1023")
	for key, value := range proxyRequestHeaders(hints) {
		req.Header.Set(key, value)
	}
	resp, err := s.probeClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
	return resp.StatusCode, resp.Header, nil
}

func proxyRequestHeaders(hints map[string]any) map[string]string {
	proxy, ok := hints["proxyHeaders"].(map[string]any)
	if !ok {
		return nil
	}
	switch request := proxy["request"].(type) {
	case map[string]string:
		return request
	case map[string]any:
		out := make(map[string]string, len(request))
		for key, value := range request {
			if text, ok := value.(string); ok {
				out[key] = text
			}
		}
		return out
	default:
		return nil
	}
}

type testReport struct {
	w http.ResponseWriter
}

func (t *testReport) line(text string) {
	_, _ = io.WriteString(t.w, text+"\r\n\r\n")
}

func (t *testReport) end(text string) {
	_, _ = io.WriteString(t.w, text)
}

func (t *testReport) fail(step string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		t.line(step + ": timed out")
	} else {
		t.line(step + ": " + err.Error())
	}
	t.end("error")
}
