// Package restserver implements the REST/SSE transport described in spec
// §6: the same Handlers contracts the gRPC transport drives, reachable
// over plain net/http with JSON bodies and text/event-stream responses
// for the streaming RPCs. Grounded on omar251990-omar251990's
// pkg/web/server.go (ServeMux routing, CORS/auth middleware chaining,
// sendJSON/sendError helpers) adapted from that repo's monitoring-KPI
// domain to this one's device-model domain, with glog in place of
// zerolog to match the rest of this module's logging.
package restserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/golang/glog"

	"github.com/device-model/server/internal/asset"
	"github.com/device-model/server/internal/authn"
	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/handlers"
	"github.com/device-model/server/internal/subscription"
	"github.com/device-model/server/internal/wire"
)

// Config configures the REST server.
type Config struct {
	Port         int
	AuthRequired bool
	Assets       *asset.Store
}

// Server is the REST/SSE transport over internal/handlers.
type Server struct {
	h            *handlers.Handlers
	assets       *asset.Store
	authRequired bool
	subs         *subscription.Registry
	httpServer   *http.Server
	port         int
}

func New(h *handlers.Handlers, cfg Config) *Server {
	return &Server{
		h:            h,
		assets:       cfg.Assets,
		authRequired: cfg.AuthRequired,
		subs:         subscription.NewRegistry(),
		port:         cfg.Port,
	}
}

// Serve builds the route table and blocks serving it. Mirrors the
// teacher's own Start()/corsMiddleware() shape.
func (s *Server) Serve() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/value/", s.requireAuth(s.handleValue))
	mux.HandleFunc("/v1/multiset", s.requireAuth(s.handleMultiSet))
	mux.HandleFunc("/v1/param/", s.requireAuth(s.handleParam))
	mux.HandleFunc("/v1/paraminfo", s.requireAuth(s.handleParamInfo))
	mux.HandleFunc("/v1/device", s.requireAuth(s.handleDevice))
	mux.HandleFunc("/v1/command/", s.requireAuth(s.handleCommand))
	mux.HandleFunc("/v1/languagepack/", s.requireAuth(s.handleLanguagePack))
	mux.HandleFunc("/v1/languages", s.requireAuth(s.handleLanguages))
	mux.HandleFunc("/v1/slots", s.requireAuth(s.handleSlots))
	mux.HandleFunc("/v1/subscriptions", s.requireAuth(s.handleSubscriptions))
	mux.HandleFunc("/v1/connect", s.requireAuth(s.handleConnect))
	mux.HandleFunc("/v1/asset/", s.requireAuth(s.handleAsset))
	mux.HandleFunc("/v1/token", s.handleIssueToken)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming endpoints hold connections open
		IdleTimeout:  60 * time.Second,
	}
	log.Infof("restserver: listening on :%d", s.port)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware sets the CORS headers spec §6 requires on every
// response: the request's own Origin (or "*" when absent), the full
// allowed-headers list, and credentials enabled.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, accept, Origin, X-Requested-With, Language, Detail-Level")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey int

const authorizerKey ctxKey = 0

// requireAuth extracts the bearer token (if auth is required), builds an
// Authorizer, and stashes it on the request context. Requests with no
// token proceed under authz.Disabled when auth is turned off server-wide.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authRequired {
			next(w, r.WithContext(context.WithValue(r.Context(), authorizerKey, authz.Disabled)))
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			s.sendError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := authn.ParseClaims(token)
		if err != nil {
			s.sendError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		az, err := authz.FromRoles(claims.Scopes, true)
		if err != nil {
			s.sendError(w, http.StatusUnauthorized, "no granted scopes")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), authorizerKey, az)))
	}
}

func authorizerFrom(r *http.Request) *authz.Authorizer {
	if az, ok := r.Context().Value(authorizerKey).(*authz.Authorizer); ok {
		return az
	}
	return authz.Disabled
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("restserver: encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}

// sendErr maps a gRPC-style error (returned by internal/handlers) onto
// the REST status table (spec §6 RESTStatus).
func (s *Server) sendErr(w http.ResponseWriter, err error) {
	st := wire.AsStatus(err)
	s.sendJSON(w, wire.RESTStatus(st.Code()), map[string]string{"error": st.Message()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleIssueToken mints a local dev/test bearer token (spec §A); it is
// never the auth boundary itself, only a convenience for operators
// driving this server directly without a separate identity provider.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string   `json:"username"`
		Scopes   []string `json:"scopes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := authn.IssueDevToken(req.Username, req.Scopes, 24*time.Hour)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"token": token})
}

func slotAndOidFromPath(prefix, path string) (uint32, string, error) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 1 || parts[0] == "" {
		return 0, "", fmt.Errorf("missing slot in path %q", path)
	}
	slot, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("invalid slot %q: %w", parts[0], err)
	}
	oidStr := "/"
	if len(parts) == 2 && parts[1] != "" {
		oidStr = "/" + parts[1]
	}
	return uint32(slot), oidStr, nil
}

func queryUint32(r *http.Request, key string, def uint32) uint32 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}
