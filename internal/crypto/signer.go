package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Request authentication headers.
const (
	HeaderAddress   = "X-Bet-Address"
	HeaderTimestamp = "X-Bet-Timestamp"
	HeaderNonce     = "X-Bet-Nonce"
	HeaderSignature = "X-Bet-Signature"
)

// messagePrefix namespaces signed request messages.
const messagePrefix = "tokenbet"

// Signer produces EIP-191 personal_sign signatures over API requests.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	now        func() time.Time
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return NewSignerFromKey(pk), nil
}

// NewSignerFromKey wraps an already parsed private key.
func NewSignerFromKey(pk *ecdsa.PrivateKey) *Signer {
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		now:        time.Now,
	}
}

// Address returns the checksummed address derived from the private key.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// AuthHeaders signs a request and returns the headers the API expects.
//
// Returned header keys:
//   - X-Bet-Address
//   - X-Bet-Timestamp
//   - X-Bet-Nonce
//   - X-Bet-Signature
func (s *Signer) AuthHeaders(method, path string, body []byte) (map[string]string, error) {
	ts := s.now().Unix()
	nonce := uuid.NewString()

	sig, err := s.SignMessage(RequestMessage(method, path, ts, nonce, body))
	if err != nil {
		return nil, err
	}

	return map[string]string{
		HeaderAddress:   s.Address(),
		HeaderTimestamp: strconv.FormatInt(ts, 10),
		HeaderNonce:     nonce,
		HeaderSignature: sig,
	}, nil
}

// SignMessage returns the 0x-prefixed 65-byte personal_sign signature of msg.
func (s *Signer) SignMessage(msg []byte) (string, error) {
	sig, err := ethcrypto.Sign(personalHash(msg), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: sign: %w", err)
	}
	// Ethereum convention: v = 27 or 28.
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RequestMessage builds the canonical message signed for an API request.
// The body is committed to by its SHA-256 digest.
func RequestMessage(method, path string, timestamp int64, nonce string, body []byte) []byte {
	sum := sha256.Sum256(body)
	return []byte(strings.Join([]string{
		messagePrefix,
		strings.ToUpper(method),
		path,
		strconv.FormatInt(timestamp, 10),
		nonce,
		hex.EncodeToString(sum[:]),
	}, "\n"))
}

// personalHash computes the EIP-191 version 0x45 digest:
// keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func personalHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return ethcrypto.Keccak256([]byte(prefix), msg)
}
