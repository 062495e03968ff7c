package ens

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/net/idna"
)

// ensProfile applies the UTS-46 lookup mapping ENS uses for name
// normalization. Strict DNS label rules are relaxed because ENS
// permits labels DNS would reject.
var ensProfile = idna.New(
	idna.MapForLookup(),
	idna.StrictDomainName(false),
	idna.Transitional(false),
)

// Normalize canonicalizes a name before hashing or lookup.
func Normalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty name")
	}

	normalized, err := ensProfile.ToUnicode(name)
	if err != nil {
		return "", fmt.Errorf("failed to normalize name: %w", err)
	}
	return normalized, nil
}

// Namehash computes the EIP-137 node hash for a name: the labels are
// hashed right to left, each folded into the running hash.
func Namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = toBytes32(crypto.Keccak256(node[:], labelHash))
	}
	return node
}

func toBytes32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}
