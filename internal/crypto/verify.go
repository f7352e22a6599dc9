package crypto

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// Verification failures. All of them wrap domain.ErrUnauthorized.
var (
	ErrMissingAuth       = fmt.Errorf("%w: missing authentication headers", domain.ErrUnauthorized)
	ErrMalformedAuth     = fmt.Errorf("%w: malformed authentication headers", domain.ErrUnauthorized)
	ErrStaleRequest      = fmt.Errorf("%w: request timestamp outside allowed skew", domain.ErrUnauthorized)
	ErrReplayedRequest   = fmt.Errorf("%w: nonce already used", domain.ErrUnauthorized)
	ErrSignatureMismatch = fmt.Errorf("%w: signature does not match address", domain.ErrUnauthorized)
)

// SignedRequest carries the parts of an HTTP request covered by a signature.
type SignedRequest struct {
	Method    string
	Path      string
	Body      []byte
	Address   string
	Timestamp string
	Nonce     string
	Signature string
}

// Verifier proves that a request was signed by the address it claims.
type Verifier struct {
	maxSkew time.Duration
	nonces  domain.NonceStore
	now     func() time.Time
}

// NewVerifier creates a Verifier that accepts timestamps within maxSkew of
// the local clock and rejects any nonce seen within twice that window.
// Nonces are kept in process until WithNonceStore replaces the store.
func NewVerifier(maxSkew time.Duration) *Verifier {
	return &Verifier{
		maxSkew: maxSkew,
		nonces:  NewReplayGuard(),
		now:     time.Now,
	}
}

// WithNonceStore shares nonce records through store, typically Redis, so
// every replica rejects a replayed request.
func (v *Verifier) WithNonceStore(store domain.NonceStore) *Verifier {
	if store != nil {
		v.nonces = store
	}
	return v
}

// Verify checks the request signature and returns the checksummed address
// of the signer. Errors that do not wrap domain.ErrUnauthorized mean the
// nonce store could not be reached.
func (v *Verifier) Verify(ctx context.Context, req SignedRequest) (string, error) {
	if req.Address == "" || req.Timestamp == "" || req.Nonce == "" || req.Signature == "" {
		return "", ErrMissingAuth
	}

	claimed, err := NormalizeAddress(req.Address)
	if err != nil {
		return "", ErrMalformedAuth
	}

	ts, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return "", ErrMalformedAuth
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return "", ErrStaleRequest
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil || len(sig) != 65 {
		return "", ErrMalformedAuth
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	digest := personalHash(RequestMessage(req.Method, req.Path, ts, req.Nonce, req.Body))
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return "", ErrSignatureMismatch
	}
	if ethcrypto.PubkeyToAddress(*pub).Hex() != claimed {
		return "", ErrSignatureMismatch
	}

	// Record the nonce only after the signature checks out so that forged
	// requests cannot burn a legitimate client's nonces.
	fresh, err := v.nonces.Claim(ctx, claimed+":"+req.Nonce, 2*v.maxSkew)
	if err != nil {
		return "", fmt.Errorf("crypto: record nonce: %w", err)
	}
	if !fresh {
		return "", ErrReplayedRequest
	}

	return claimed, nil
}
