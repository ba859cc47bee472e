package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"freetoair/catalog/internal/metrics"
)

// Prober answers whether a stream URL is currently serving. Probe
// outcomes are booleans, never errors: an unreachable stream is an
// expected condition, not an exceptional one.
type Prober interface {
	Probe(ctx context.Context, url string) bool
}

// HTTPProber checks reachability with a HEAD request, retrying once with
// a bodiless GET when the target rejects HEAD. Any 2xx response counts as
// reachable; any other status, transport error or timeout does not.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProber creates a prober whose probes never block longer than the
// given timeout (HEAD and GET fallback combined).
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{
			// The per-probe deadline is carried by the context; the client
			// timeout is a backstop for callers that pass a bare context.
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Probe reports whether the URL answered a request with a 2xx status
// within the configured timeout.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reachable, retryWithGet := p.request(ctx, http.MethodHead, rawURL)
	if retryWithGet {
		reachable, _ = p.request(ctx, http.MethodGet, rawURL)
	}

	metrics.RecordProbe(reachable)
	log.Debug().Str("url", rawURL).Bool("reachable", reachable).Msg("Stream probed")
	return reachable
}

// request performs one probe attempt and reports the verdict plus whether
// a GET retry is worthwhile. HEAD attempts that fail at the transport
// level or are refused with 405/501 fall back to GET, since some stream
// servers only implement GET.
func (p *HTTPProber) request(ctx context.Context, method, rawURL string) (reachable, retryWithGet bool) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false, false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// Retry with GET only while the probe deadline has not passed.
		if method == http.MethodHead && ctx.Err() == nil {
			return false, true
		}
		return false, false
	}
	// Close without draining: stream bodies are unbounded and the probe
	// only needs the status line.
	resp.Body.Close()

	if method == http.MethodHead &&
		(resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		return false, true
	}

	return resp.StatusCode >= 200 && resp.StatusCode < 300, false
}
