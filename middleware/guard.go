package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/pmscanauth"
)

// RejectFunc writes the response for a request Guard refused. err is
// pmscanauth.ErrUnauthorized or pmscanauth.ErrEngineNotReady.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

// GuardOption customizes Guard.
type GuardOption func(*guard)

// WithReject replaces the default JSON 401 body.
func WithReject(fn RejectFunc) GuardOption {
	return func(g *guard) {
		if fn != nil {
			g.reject = fn
		}
	}
}

type guard struct {
	engine *pmscanauth.Engine
	reject RejectFunc
}

// Guard rejects requests without a valid access token and stores the
// authenticated subject id in the request context. Read it back with
// pmscanauth.SubjectIDFromContext.
func Guard(engine *pmscanauth.Engine, opts ...GuardOption) func(http.Handler) http.Handler {
	g := &guard{engine: engine, reject: rejectJSON}
	for _, opt := range opts {
		opt(g)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID, err := g.authenticate(r)
			if err != nil {
				g.reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(pmscanauth.WithSubjectID(r.Context(), subjectID)))
		})
	}
}

func (g *guard) authenticate(r *http.Request) (int64, error) {
	if g.engine == nil {
		return 0, pmscanauth.ErrEngineNotReady
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return 0, pmscanauth.ErrUnauthorized
	}
	return g.engine.Authenticate(r.Context(), token)
}

// rejectJSON always answers 401 so an unready engine is indistinguishable
// from a bad token.
func rejectJSON(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statusCode": http.StatusUnauthorized,
		"message":    "Unauthorized",
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
