package auth

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

// Tier classifies a caller by the API key it presented.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

type tierCtxKey struct{}

// Gate validates X-API-Key headers and classifies callers into tiers.
// Tiering has no behavioral effect on the catalog endpoints; the gate is
// binary allow/deny.
type Gate struct {
	keys map[string]Tier
}

// NewGate builds a gate from the configured free and pro keys. Empty keys
// are ignored; a gate with no keys at all lets every request through.
func NewGate(freeKey, proKey string) *Gate {
	keys := make(map[string]Tier)
	if freeKey != "" {
		keys[freeKey] = TierFree
	}
	if proKey != "" {
		keys[proKey] = TierPro
	}
	return &Gate{keys: keys}
}

// Enabled reports whether any API key is configured.
func (g *Gate) Enabled() bool {
	return len(g.keys) > 0
}

// Middleware checks for the X-API-Key header and validates it against the
// configured keys. If no keys are configured, it allows all requests.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		reqAPIKey := r.Header.Get("X-API-Key")
		if reqAPIKey == "" {
			http.Error(w, "API key required", http.StatusUnauthorized)
			return
		}

		tier, ok := g.keys[reqAPIKey]
		if !ok {
			hlog.FromRequest(r).Warn().Msg("Rejected request with invalid API key")
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTier(r.Context(), tier)))
	})
}

// WithTier returns a context carrying the caller's tier.
func WithTier(ctx context.Context, tier Tier) context.Context {
	return context.WithValue(ctx, tierCtxKey{}, tier)
}

// TierFromContext extracts the caller's tier, if the gate set one.
func TierFromContext(ctx context.Context) (Tier, bool) {
	tier, ok := ctx.Value(tierCtxKey{}).(Tier)
	return tier, ok
}
