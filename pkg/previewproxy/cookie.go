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
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/caredai/daytona/pkg/errkind"
)

// cookieTTL is the signed-cookie lifetime embedded in the JWT's own expiry
// claim, kept in lockstep with the Set-Cookie Max-Age in exchange.go
// (spec.md §4.8: "TTL 3600 seconds").
const cookieTTL = 3600 * time.Second

// cookieClaims carries the cookie's plaintext. Encode binds it to the
// cookie name it was issued for through the registered "aud" claim, so
// Decode("a", Encode("b", x)) can never succeed — a cookie minted for one
// name must not decode under another (spec.md §4.9, tested by the
// cookie-binding invariant in §8.8).
type cookieClaims struct {
	Value string `json:"val"`
}

// CookieCodec is C9: authenticated, tamper-proof encode/decode of the
// sandbox-bound cookie value, implemented as an HMAC-SHA256-signed JWT —
// the same scheme wisbric-nightowl's SessionManager uses for session
// tokens, reused here because the signed-and-name-bound shape is
// identical.
type CookieCodec struct {
	signingKey []byte
}

// NewCookieCodec builds a codec from a server-side secret. No rotation is
// required (spec.md §4.9): changing the secret simply invalidates
// outstanding cookies.
func NewCookieCodec(secret string) (*CookieCodec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("cookie signing key must be at least 32 bytes, got %d", len(secret))
	}
	return &CookieCodec{signingKey: []byte(secret)}, nil
}

// Encode signs plaintext under name, returning the opaque cookie value.
func (c *CookieCodec) Encode(name, plaintext string) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: c.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Audience:  jwt.Audience{name},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(cookieTTL)),
		Issuer:    "daytona-preview-proxy",
	}

	raw, err := jwt.Signed(signer).Claims(registered).Claims(cookieClaims{Value: plaintext}).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing cookie: %w", err)
	}
	return raw, nil
}

// Decode verifies the signature and name binding, returning the plaintext.
// Any failure — bad signature, wrong name, malformed token — is surfaced
// as a CryptoError-kind AuthFailure (spec.md §7: "CryptoError ... treated
// as AuthInvalid").
func (c *CookieCodec) Decode(name, opaque string) (string, error) {
	tok, err := jwt.ParseSigned(opaque, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", errkind.Wrap(errkind.AuthFailure, fmt.Errorf("parsing cookie: %w", err))
	}

	var registered jwt.Claims
	var custom cookieClaims
	if err := tok.Claims(c.signingKey, &registered, &custom); err != nil {
		return "", errkind.Wrap(errkind.AuthFailure, fmt.Errorf("verifying cookie signature: %w", err))
	}

	if registered.Issuer != "daytona-preview-proxy" {
		return "", errkind.Wrap(errkind.AuthFailure, fmt.Errorf("unexpected cookie issuer %q", registered.Issuer))
	}
	if !audienceContains(registered.Audience, name) {
		return "", errkind.Wrap(errkind.AuthFailure, fmt.Errorf("cookie not bound to %q", name))
	}
	if registered.Expiry != nil && registered.Expiry.Time().Before(time.Now()) {
		return "", errkind.Wrap(errkind.AuthFailure, fmt.Errorf("cookie expired at %s", registered.Expiry.Time()))
	}

	return custom.Value, nil
}

func audienceContains(aud jwt.Audience, name string) bool {
	for _, a := range aud {
		if a == name {
			return true
		}
	}
	return false
}
