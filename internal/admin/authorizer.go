package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/shared"
)

// Authorizer answers claim checks by consulting each source in turn.
type Authorizer struct {
	sources []ClaimSource
	logger  *slog.Logger
}

// NewAuthorizer builds an Authorizer over sources.
func NewAuthorizer(logger *slog.Logger, sources ...ClaimSource) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{sources: sources, logger: logger}
}

// Allow reports whether p holds claim in any source. Anonymous principals
// hold nothing. A failing source is skipped unless no other source grants
// the claim, in which case its error is returned.
func (a *Authorizer) Allow(ctx context.Context, p shared.Principal, claim string) (bool, error) {
	if p.Anonymous() {
		return false, nil
	}
	claim = strings.ToLower(strings.TrimSpace(claim))
	var firstErr error
	for _, src := range a.sources {
		claims, err := src.Claims(ctx, p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, c := range claims {
			if strings.ToLower(c) == claim {
				return true, nil
			}
		}
	}
	return false, firstErr
}

// IsAdmin reports whether p holds the admin claim. Lookup failures deny.
func (a *Authorizer) IsAdmin(ctx context.Context, p shared.Principal) bool {
	ok, err := a.Allow(ctx, p, shared.ClaimAdmin)
	if err != nil {
		a.logger.Error("admin claim lookup", slog.Any("error", err))
	}
	return ok
}

// RequireAdmin rejects requests whose session lacks the admin claim.
func (a *Authorizer) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := shared.PrincipalFromContext(r.Context())
		if p.Anonymous() {
			httpx.RespondError(w, shared.ErrSignInRequired)
			return
		}
		ok, err := a.Allow(r.Context(), p, shared.ClaimAdmin)
		if err != nil && !ok {
			a.logger.Error("admin require", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		if !ok {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
