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
	"context"
	"fmt"
	"net/http"

	"github.com/caredai/daytona/pkg/daytonaapi"
)

// TokenExchanger is C8: it trades a signed preview URL token for the
// sandbox id it identifies, and mints the cookie that subsequent requests
// will authenticate with.
type TokenExchanger struct {
	Daytona      daytonaapi.Client
	Codec        *CookieCodec
	CookiePrefix string
}

// IssuedCookie is the cookie the exchanger wants the caller to set on the
// response, bound to the sandbox id returned by Resolve.
type IssuedCookie struct {
	Name  string
	Value string
}

// Resolve exchanges token for a sandbox id via the Admin API, then mints a
// cookie for it. The token itself is never stored — only the encoded
// sandbox id is (spec.md §4.8).
func (e *TokenExchanger) Resolve(ctx context.Context, token string, port int) (sandboxID string, cookie IssuedCookie, err error) {
	sandboxID, err = e.Daytona.ExchangeSignedPreviewToken(ctx, token, port)
	if err != nil {
		return "", IssuedCookie{}, fmt.Errorf("exchanging signed preview token: %w", err)
	}

	cookieName := e.CookiePrefix + sandboxID
	value, err := e.Codec.Encode(cookieName, sandboxID)
	if err != nil {
		return "", IssuedCookie{}, fmt.Errorf("encoding cookie for %s: %w", sandboxID, err)
	}

	return sandboxID, IssuedCookie{Name: cookieName, Value: value}, nil
}

// SetCookie writes the issued cookie to w per spec.md §4.8: path=/, the
// domain derived from the request host, HttpOnly, Secure iff TLS is
// enabled on the listener, Max-Age 3600.
func SetCookie(w http.ResponseWriter, c IssuedCookie, domain string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     "/",
		Domain:   domain,
		HttpOnly: true,
		Secure:   secure,
		MaxAge:   int(cookieTTL.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// CookieDomain derives the cookie's Domain attribute from the request
// Host header: the bare hostname with any port stripped. spec.md §4.8
// leaves the exact derivation unspecified beyond "a helper not specified
// here" — stripping the port is the minimal behavior that makes the
// cookie valid for http.Cookie at all (RFC 6265 forbids a port in Domain).
func CookieDomain(r *http.Request) string {
	host := r.Host
	for i := 0; i < len(host); i++ {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
