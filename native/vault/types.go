package vault

import (
	"math/big"

	"nhbvault/core/types"
	"nhbvault/crypto"
)

// Reward stream indexes. The vault supports exactly two reward token streams:
// the primary token emitted by the staking pool and the secondary token minted
// proportionally to the primary along a decaying schedule.
const (
	StreamPrimary = iota
	StreamSecondary
	rewardStreams
)

// ClaimRequest captures the caller-supplied inputs for a single claim cycle.
// SecondaryAmount may be nil, in which case the engine derives it from the
// emission schedule and the secondary token's live total supply. MaxAssetIn is
// the caller's slippage ceiling on the asset amount collected from them.
type ClaimRequest struct {
	PrimaryAmount   *big.Int
	SecondaryAmount *big.Int
	MaxAssetIn      *big.Int
}

// ClaimResult reports the outcome of a completed claim cycle.
type ClaimResult struct {
	PrimaryAmount   *big.Int
	SecondaryAmount *big.Int
	AssetValue      *big.Int
	AmountPaidIn    *big.Int
	LockerCuts      [rewardStreams]*big.Int
	CallerCuts      [rewardStreams]*big.Int
	ConfigVersion   uint64
}

// RewardPool abstracts the external staking venue that custodies the pooled
// asset and accrues reward tokens on the vault's behalf.
type RewardPool interface {
	Deposit(amount *big.Int, onBehalfOf crypto.Address) (*big.Int, error)
	Withdraw(amount *big.Int, claimExtras bool) error
	BalanceOf(account crypto.Address) (*big.Int, error)
	GetReward() error
	Earned(account crypto.Address) (*big.Int, error)
}

// PriceOracle resolves the current USD price for a token. All prices returned
// by one oracle must share a common fixed-point scale; the scale cancels when
// reward value is converted into pooled-asset units. Implementations must fail
// for unsupported tokens or stale feeds rather than report zero.
type PriceOracle interface {
	Price(token crypto.Address) (*big.Int, error)
}

// Token exposes the transfer surface the engine needs from each of the three
// tokens it touches (pooled asset, primary reward, secondary reward).
type Token interface {
	Address() crypto.Address
	TotalSupply() (*big.Int, error)
	Transfer(to crypto.Address, amount *big.Int) error
	TransferFrom(from, to crypto.Address, amount *big.Int) error
}

// EventSink receives the typed events the engine emits.
type EventSink interface {
	AppendEvent(evt *types.Event)
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
