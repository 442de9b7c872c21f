package factory

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// InitCodeHash is the pinned hash of the canonical pair build. PairAddress
// folds it into the derivation so pair addresses can be computed off-path
// without consulting the factory's pair table.
var InitCodeHash = common.HexToHash("0x006335aeb20a417a919586d067681875df2d4ccf6aed0418b0ff250149e5e44a")

// SortTokens orders a token pair ascending by address.
func SortTokens(tokenA, tokenB common.Address) (token0, token1 common.Address) {
	if tokenA.Cmp(tokenB) < 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}

// PairAddress derives the deterministic pair address for two tokens under a
// factory: keccak256(0xff ++ factory ++ keccak256(token0 ++ token1) ++
// InitCodeHash), truncated to the low 20 bytes.
func PairAddress(factory, tokenA, tokenB common.Address) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256(token0.Bytes(), token1.Bytes())
	h := crypto.Keccak256([]byte{0xff}, factory.Bytes(), salt, InitCodeHash.Bytes())
	return common.BytesToAddress(h[12:])
}
