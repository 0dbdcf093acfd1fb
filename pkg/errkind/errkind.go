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

// Package errkind tags errors with the propagation-relevant kinds used by
// the autoscaler control loop and the preview proxy, so callers can branch
// on kind with errors.Is instead of matching message strings.
package errkind

import "errors"

var (
	// Config is returned for a missing or invalid environment value at
	// startup. Fatal: the process must not start.
	Config = errors.New("config error")

	// TransientUpstream wraps a failed call to the Daytona Admin API or the
	// Kubernetes API. The current tick or request aborts; the next tick or
	// request retries independently.
	TransientUpstream = errors.New("transient upstream error")

	// Consistency marks an expected relationship that was missing (a
	// Deletable runner with no matching node, a Scheduled placeholder with
	// no runner on its node, ...). Logged and skipped, never fatal.
	Consistency = errors.New("consistency warning")

	// AuthFailure covers AuthInvalid, AuthError and CryptoError from
	// spec.md §7: a credential was presented and rejected, a validator
	// itself errored, or a cookie failed to decode. All three are folded
	// into one kind here because they are handled identically by the
	// resolver: recorded as a reason string, never fatal to the request.
	AuthFailure = errors.New("auth failure")
)

// Wrap ties err to kind so errors.Is(result, kind) succeeds while the
// original message and stack of err are preserved in the chain.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string { return e.kind.Error() + ": " + e.err.Error() }

func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }
