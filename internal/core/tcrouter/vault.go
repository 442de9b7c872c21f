package tcrouter

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/lovelyswap/golovelyd/internal/core/pair"
	"github.com/lovelyswap/golovelyd/internal/core/state"
)

var ErrVaultForbidden = errors.New("tcrouter: vault withdrawal forbidden")

// RewardsVault escrows one competition's reward funding. Each competition
// gets its own vault so reward accounting never mixes across competitions,
// and only the competition router may pay out of it.
type RewardsVault struct {
	world *state.World
	addr  common.Address
	token pair.ERC20
	owner common.Address
}

// NewRewardsVault deploys a vault holding rewards in token, controlled by
// owner.
func NewRewardsVault(w *state.World, rewardToken pair.ERC20, owner common.Address) (*RewardsVault, error) {
	v := &RewardsVault{world: w, addr: w.NewAddress(), token: rewardToken, owner: owner}
	if err := w.Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *RewardsVault) Address() common.Address { return v.addr }

// Balance returns the escrowed reward-token balance.
func (v *RewardsVault) Balance() *uint256.Int { return v.token.BalanceOf(v.addr) }

// Withdraw pays amount of the reward token to `to`. Owner only.
func (v *RewardsVault) Withdraw(ctx *state.Context, to common.Address, amount *uint256.Int) error {
	if ctx.Caller != v.owner {
		return ErrVaultForbidden
	}
	return v.token.Transfer(state.NewContext(v.world, v.addr), to, amount)
}
