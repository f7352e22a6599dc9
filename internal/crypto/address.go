package crypto

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// escrowSeed prefixes every escrow derivation so escrow addresses never
// collide with addresses derived from other seeds.
const escrowSeed = "escrow"

// NormalizeAddress validates a hex address and returns its EIP-55 checksum
// form, which is the canonical identity used throughout the ledger.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("crypto: %q: %w", s, domain.ErrInvalidAddress)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return "", fmt.Errorf("crypto: zero address: %w", domain.ErrInvalidAddress)
	}
	return addr.Hex(), nil
}

// EscrowAddress deterministically derives the escrow account for a
// competition: the last 20 bytes of keccak256("escrow" || id). The same id
// always resolves to the same account.
func EscrowAddress(competitionID string) string {
	h := ethcrypto.Keccak256([]byte(escrowSeed), []byte(competitionID))
	return common.BytesToAddress(h[12:]).Hex()
}
