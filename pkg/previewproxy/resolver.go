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

// Package previewproxy implements Core B: the credential resolver (C7),
// the signed-token exchanger (C8) and the cookie codec (C9) behind the
// sandbox preview proxy's authentication layer.
package previewproxy

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caredai/daytona/internal/telemetry"
	"github.com/caredai/daytona/pkg/daytonaapi"
)

// Config names the header/query/cookie contract from spec.md §6.
type Config struct {
	AuthKeyHeader        string
	AuthKeyQueryParam    string
	AuthCookiePrefix     string
	CookieDomainOverride string
	TLSEnabled           bool
}

// Resolver is C7: it resolves (idOrToken, request) into a sandbox id by
// trying each credential method in order, fully independently.
type Resolver struct {
	Daytona    daytonaapi.Client
	Exchanger  *TokenExchanger
	Codec      *CookieCodec
	Config     Config
	Log        *zap.SugaredLogger
}

// Outcome is what the handler needs to finish the request: either the
// resolved sandbox id (possibly with a cookie to set), or a redirect.
type Outcome struct {
	SandboxID    string
	Cookie       *IssuedCookie
	Redirect     bool
	RedirectURL  string
	StrippedAuthKeyHeader bool
	RemovedAuthKeyQueryParam bool
}

// Resolve implements C7's attempt order from spec.md §4.7: bearer, auth-key
// header, auth-key query parameter, cookie, then signed-token exchange
// (C8). The first success wins; every individual failure is collected into
// a reason list used only if every attempt fails.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, idOrToken string, port int) Outcome {
	var reasons []string
	attempted := false

	// The auth-key header must never reach the upstream, regardless of
	// which credential method ends up succeeding (spec.md §4.7), so it is
	// read and stripped before any method is tried.
	var authKey string
	var strippedAuthKeyHeader bool
	if r.Config.AuthKeyHeader != "" {
		if key := req.Header.Get(r.Config.AuthKeyHeader); key != "" {
			authKey = key
			strippedAuthKeyHeader = true
			req.Header.Del(r.Config.AuthKeyHeader)
		}
	}

	if bearer, ok := bearerToken(req); ok {
		attempted = true
		ok, err := r.timedValidate("bearer", func() (bool, error) {
			return r.Daytona.ValidateBearerForSandbox(ctx, idOrToken, bearer)
		})
		if err != nil {
			reasons = append(reasons, "bearer: "+err.Error())
		} else if ok {
			return Outcome{SandboxID: idOrToken, StrippedAuthKeyHeader: strippedAuthKeyHeader}
		} else {
			reasons = append(reasons, "bearer: invalid")
		}
	}

	if authKey != "" {
		attempted = true
		ok, err := r.timedValidate("auth-key-header", func() (bool, error) {
			return r.Daytona.ValidateAuthKeyForSandbox(ctx, idOrToken, authKey)
		})
		if err != nil {
			reasons = append(reasons, "auth-key header: "+err.Error())
		} else if ok {
			return Outcome{SandboxID: idOrToken, StrippedAuthKeyHeader: true}
		} else {
			reasons = append(reasons, "auth-key header: invalid")
		}
	}

	if r.Config.AuthKeyQueryParam != "" {
		q := req.URL.Query()
		if key := q.Get(r.Config.AuthKeyQueryParam); key != "" {
			attempted = true
			ok, err := r.timedValidate("auth-key-query", func() (bool, error) {
				return r.Daytona.ValidateAuthKeyForSandbox(ctx, idOrToken, key)
			})
			if err != nil {
				reasons = append(reasons, "auth-key query: "+err.Error())
			} else if ok {
				q.Del(r.Config.AuthKeyQueryParam)
				req.URL.RawQuery = q.Encode()
				return Outcome{SandboxID: idOrToken, RemovedAuthKeyQueryParam: true, StrippedAuthKeyHeader: strippedAuthKeyHeader}
			} else {
				reasons = append(reasons, "auth-key query: invalid")
			}
		}
	}

	cookieName := r.Config.AuthCookiePrefix + idOrToken
	if c, err := req.Cookie(cookieName); err == nil {
		attempted = true
		start := time.Now()
		decoded, decErr := r.Codec.Decode(cookieName, c.Value)
		r.logAttempt("cookie", time.Since(start), decErr == nil && decoded == idOrToken, decErr)
		if decErr != nil {
			reasons = append(reasons, "cookie: "+decErr.Error())
		} else if decoded == idOrToken {
			return Outcome{SandboxID: idOrToken, StrippedAuthKeyHeader: strippedAuthKeyHeader}
		} else {
			reasons = append(reasons, "cookie: sandbox id mismatch")
		}
	}

	// Signed-token exchange is always attempted last, regardless of
	// whether any other credential was presented — idOrToken may itself
	// be the signed token.
	start := time.Now()
	sandboxID, cookie, err := r.Exchanger.Resolve(ctx, idOrToken, port)
	r.logAttempt("signed-token", time.Since(start), err == nil, err)
	if err == nil {
		return Outcome{SandboxID: sandboxID, Cookie: &cookie, StrippedAuthKeyHeader: strippedAuthKeyHeader}
	}
	reasons = append(reasons, "signed token exchange: "+err.Error())

	message := "missing authentication"
	if attempted && len(reasons) > 0 {
		message = strings.Join(reasons, "; ")
	}

	authURL, urlErr := r.Daytona.GetAuthURL(ctx, idOrToken, req.Host)
	if urlErr != nil {
		r.Log.Errorw("failed to compute auth url", "error", urlErr)
	}

	r.Log.Warnw("credential resolution failed, redirecting to auth", "reason", message, "sandbox_or_token", idOrToken)

	return Outcome{Redirect: true, RedirectURL: authURL}
}

func (r *Resolver) timedValidate(method string, fn func() (bool, error)) (bool, error) {
	start := time.Now()
	ok, err := fn()
	r.logAttempt(method, time.Since(start), ok, err)
	return ok, err
}

func (r *Resolver) logAttempt(method string, d time.Duration, ok bool, err error) {
	outcome := "invalid"
	switch {
	case err != nil:
		outcome = "error"
	case ok:
		outcome = "success"
	}
	telemetry.CredentialAttemptDuration.WithLabelValues(method, outcome).Observe(d.Seconds())

	switch {
	case err != nil:
		r.Log.Errorw("credential attempt errored", "method", method, "duration", d, "error", err)
	case ok:
		r.Log.Infow("credential attempt succeeded", "method", method, "duration", d)
	default:
		r.Log.Warnw("credential attempt invalid", "method", method, "duration", d)
	}
}

func bearerToken(req *http.Request) (string, bool) {
	h := req.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimPrefix(h, prefix)
	if token == "" {
		return "", false
	}
	return token, true
}
