package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// maxSignedBody bounds the body read for signature verification.
const maxSignedBody = 1 << 20

type callerKey struct{}

// RequestVerifier checks a signed request and returns the signer address.
type RequestVerifier interface {
	Verify(ctx context.Context, req crypto.SignedRequest) (string, error)
}

// SignatureAuth returns middleware that authenticates a request by its
// EIP-191 signature headers. The recovered address becomes the caller
// identity, available to handlers through Caller. A verifier failure that
// is not an authentication failure answers 503.
func SignatureAuth(v RequestVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", "read body failed")
				return
			}
			if len(body) > maxSignedBody {
				writeError(w, http.StatusRequestEntityTooLarge, "bad_request", "request body too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			caller, err := v.Verify(r.Context(), crypto.SignedRequest{
				Method:    r.Method,
				Path:      r.URL.RequestURI(),
				Body:      body,
				Address:   r.Header.Get(crypto.HeaderAddress),
				Timestamp: r.Header.Get(crypto.HeaderTimestamp),
				Nonce:     r.Header.Get(crypto.HeaderNonce),
				Signature: r.Header.Get(crypto.HeaderSignature),
			})
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					logger.ErrorContext(r.Context(), "signature auth unavailable", slog.String("error", err.Error()))
					writeError(w, http.StatusServiceUnavailable, "auth_unavailable", "authentication temporarily unavailable")
					return
				}
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}

			noteCaller(r, caller)
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// WithCaller returns ctx carrying the authenticated caller address.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Caller returns the authenticated caller address, if any.
func Caller(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(callerKey{}).(string)
	return c, ok && c != ""
}
