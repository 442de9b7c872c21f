package testing

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/token"
)

// Account represents a test account with a secp256k1 keypair, so it can sign
// permits in addition to holding balances.
type Account struct {
	// Name is a human-readable identifier for the account (used for debugging).
	Name string

	// Address is the 20-byte address derived from the public key.
	Address common.Address

	// PrivateKey signs permit digests.
	PrivateKey *ecdsa.PrivateKey
}

// NewAccount creates a test account with a deterministic keypair derived from
// the name. Using the same name always produces the same account, making
// tests reproducible.
func NewAccount(name string) *Account {
	seed := crypto.Keccak256([]byte("golovelyd/test-account/" + name))
	key, err := crypto.ToECDSA(seed)
	if err != nil {
		// A keccak output outside the curve order is astronomically unlikely;
		// fold the name once more rather than making every caller handle it.
		key, err = crypto.ToECDSA(crypto.Keccak256(seed))
		if err != nil {
			panic(fmt.Sprintf("deriving key for %q: %v", name, err))
		}
	}
	return &Account{
		Name:       name,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}
}

// SignPermit produces the signature triple for a signed approval of value to
// spender on the given token ledger, valid until deadline.
func (a *Account) SignPermit(t *token.Token, spender common.Address, value, deadline *uint256.Int) (v byte, r, s [32]byte, err error) {
	digest := t.PermitDigest(a.Address, spender, value, deadline)
	sig, err := crypto.Sign(digest.Bytes(), a.PrivateKey)
	if err != nil {
		return 0, r, s, err
	}
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])
	return sig[64] + 27, r, s, nil
}
