package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// PermitTypehash is keccak256 of the permit struct type string.
var PermitTypehash = crypto.Keccak256Hash(
	[]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"),
)

var eip712DomainTypehash = crypto.Keccak256Hash(
	[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
)

func domainSeparator(name string, chainID uint64, addr common.Address) common.Hash {
	return crypto.Keccak256Hash(
		eip712DomainTypehash.Bytes(),
		crypto.Keccak256([]byte(name)),
		crypto.Keccak256([]byte("1")),
		uint256.NewInt(chainID).PaddedBytes(32),
		common.LeftPadBytes(addr.Bytes(), 32),
	)
}

// DomainSeparator returns the typed-data domain hash bound to this token.
func (t *Token) DomainSeparator() common.Hash { return t.domainSeparator }

// PermitDigest computes the signing digest for a prospective permit at the
// owner's current nonce.
func (t *Token) PermitDigest(owner, spender common.Address, value, deadline *uint256.Int) common.Hash {
	structHash := crypto.Keccak256(
		PermitTypehash.Bytes(),
		common.LeftPadBytes(owner.Bytes(), 32),
		common.LeftPadBytes(spender.Bytes(), 32),
		value.PaddedBytes(32),
		uint256.NewInt(t.nonces[owner]).PaddedBytes(32),
		deadline.PaddedBytes(32),
	)
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		t.domainSeparator.Bytes(),
		structHash,
	)
}

// Permit applies an off-chain-signed allowance: owner approves spender for
// value, valid until deadline, authorized by a secp256k1 signature over the
// typed digest. The owner's nonce is consumed, preventing replay.
func (t *Token) Permit(owner, spender common.Address, value, deadline *uint256.Int, v byte, r, s [32]byte) error {
	now := uint256.NewInt(t.world.Now())
	if deadline.Lt(now) {
		return ErrExpired
	}
	digest := t.PermitDigest(owner, spender, value, deadline)

	sig := make([]byte, 65)
	copy(sig[0:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = v - 27

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if crypto.PubkeyToAddress(*pub) != owner {
		return ErrInvalidSignature
	}

	prev := t.nonces[owner]
	t.world.Record(func() { t.nonces[owner] = prev })
	t.nonces[owner] = prev + 1

	t.setAllowance(owner, spender, value)
	t.world.Emit(Approval{Token: t.addr, Owner: owner, Spender: spender, Amount: new(uint256.Int).Set(value)})
	return nil
}
