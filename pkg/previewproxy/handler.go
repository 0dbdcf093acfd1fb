/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package previewproxy

import (
	"net/http"
	"net/http/httputil"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/caredai/daytona/internal/telemetry"
	"github.com/caredai/daytona/pkg/daytonaapi"
)

// Handler wires the Resolver (C7) into a reverse-proxy HTTP surface: every
// request's path encodes (sandboxIdOrToken, port) per spec.md §6. On
// success the (possibly modified) request is forwarded upstream; on
// failure the client is redirected with 307.
type Handler struct {
	Resolver *Resolver
	Daytona  daytonaapi.Client
}

// Routes builds the chi mux. The path shape {idOrToken}/{port}/* mirrors
// the glossary's "path encodes (sandboxIdOrToken, port)" contract; a real
// deployment may front this with a rewrite rule that produces this shape
// from whatever public URL format the API mints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.HandleFunc("/{idOrToken}/{port}/*", h.serveHTTP)
	return r
}

func (h *Handler) serveHTTP(w http.ResponseWriter, req *http.Request) {
	idOrToken := chi.URLParam(req, "idOrToken")
	port, err := strconv.Atoi(chi.URLParam(req, "port"))
	if err != nil {
		http.Error(w, "invalid port segment", http.StatusBadRequest)
		return
	}

	outcome := h.Resolver.Resolve(req.Context(), req, idOrToken, port)

	if outcome.Redirect {
		telemetry.RequestsTotal.WithLabelValues("redirect").Inc()
		http.Redirect(w, req, outcome.RedirectURL, http.StatusTemporaryRedirect)
		return
	}

	if outcome.Cookie != nil {
		SetCookie(w, *outcome.Cookie, resolveCookieDomain(h.Resolver.Config, req), h.Resolver.Config.TLSEnabled)
	}

	upstream, err := h.Daytona.ResolveSandboxUpstream(req.Context(), outcome.SandboxID, port)
	if err != nil {
		telemetry.RequestsTotal.WithLabelValues("upstream_error").Inc()
		http.Error(w, "sandbox unreachable", http.StatusBadGateway)
		return
	}

	telemetry.RequestsTotal.WithLabelValues("forwarded").Inc()
	httputil.NewSingleHostReverseProxy(upstream).ServeHTTP(w, req)
}

// resolveCookieDomain derives the Set-Cookie Domain attribute for req, per
// the derivation spec.md §4.8 leaves to "a helper not specified here",
// unless an explicit override was configured.
func resolveCookieDomain(c Config, req *http.Request) string {
	if c.CookieDomainOverride != "" {
		return c.CookieDomainOverride
	}
	return CookieDomain(req)
}
