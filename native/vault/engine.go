package vault

import (
	"fmt"
	"math/big"
	"sync"

	"nhbvault/core/types"
	"nhbvault/crypto"
	nativecommon "nhbvault/native/common"
)

const moduleName = "vault"

// Engine orchestrates the compounding vault: it custodies the pooled asset
// under the module address, keeps it staked in the external reward pool, and
// runs the claim cycle that converts accrued rewards back into staked asset.
//
// Every public operation runs under the engine mutex. The mutex doubles as the
// reentrancy guard around the claim cycle's external token and pool calls: no
// second claim can observe the same pending reward balance.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	cfgVersion uint64
	bounds     Bounds

	schedule *EmissionSchedule
	pool     RewardPool
	oracle   PriceOracle

	asset     Token
	primary   Token
	secondary Token

	moduleAddress crypto.Address
	pauses        nativecommon.PauseView
	events        EventSink
}

// NewEngine constructs a vault engine custodying funds under moduleAddr with
// the given immutable incentive bounds. The config starts zeroed and must be
// set through SetConfig before claims can route a locker cut anywhere.
func NewEngine(moduleAddr crypto.Address, bounds Bounds) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		bounds:        bounds,
	}
}

// SetRewardPool wires the engine to the external staking pool.
func (e *Engine) SetRewardPool(pool RewardPool) {
	if e == nil {
		return
	}
	e.pool = pool
}

// SetOracle wires the engine to the USD price feed.
func (e *Engine) SetOracle(oracle PriceOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// SetTokens binds the pooled asset and the two reward token streams.
func (e *Engine) SetTokens(asset, primary, secondary Token) {
	if e == nil {
		return
	}
	e.asset = asset
	e.primary = primary
	e.secondary = secondary
}

// SetEmissionSchedule configures the secondary token's mint schedule.
func (e *Engine) SetEmissionSchedule(schedule *EmissionSchedule) {
	if e == nil {
		return
	}
	e.schedule = schedule.Clone()
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEventSink wires the sink receiving the engine's typed events.
func (e *Engine) SetEventSink(sink EventSink) {
	if e == nil {
		return
	}
	e.events = sink
}

// Bounds returns the immutable incentive rate limits.
func (e *Engine) Bounds() Bounds {
	return e.bounds
}

// Config returns a copy of the current incentive configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// ConfigVersion returns the monotonically increasing config version. Version
// zero means SetConfig has never succeeded.
func (e *Engine) ConfigVersion() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfgVersion
}

// SetConfig validates and atomically replaces the incentive configuration.
// On any validation failure the previous config remains in force untouched.
func (e *Engine) SetConfig(cfg Config) error {
	if e == nil {
		return errNilEngine
	}
	if err := cfg.validate(e.bounds); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg.Clone()
	e.cfgVersion++
	version := e.cfgVersion
	applied := e.cfg.Clone()
	e.mu.Unlock()

	e.appendEvent(configUpdatedEvent{Version: version, Config: applied})
	return nil
}

// Deposit moves amount of the pooled asset from the depositor into module
// custody and stakes it in the reward pool. Share issuance against the staked
// amount is the share ledger's concern, not the engine's.
func (e *Engine) Deposit(from crypto.Address, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.asset.TransferFrom(from, e.moduleAddress, amount); err != nil {
		return nil, fmt.Errorf("vault engine: collect deposit: %w", err)
	}
	shares, err := e.pool.Deposit(amount, e.moduleAddress)
	if err != nil {
		return nil, fmt.Errorf("vault engine: stake deposit: %w", err)
	}

	e.appendEvent(depositedEvent{Account: from, Amount: copyBigInt(amount), Shares: copyBigInt(shares)})
	return shares, nil
}

// Withdraw unstakes amount from the reward pool and returns it to the
// recipient from module custody.
func (e *Engine) Withdraw(to crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.pool.Withdraw(amount, false); err != nil {
		return fmt.Errorf("vault engine: unstake: %w", err)
	}
	if err := e.asset.Transfer(to, amount); err != nil {
		return fmt.Errorf("vault engine: release withdrawal: %w", err)
	}

	e.appendEvent(withdrawnEvent{Account: to, Amount: copyBigInt(amount)})
	return nil
}

// Claim runs one full claim cycle on behalf of caller: pull all accrued
// rewards from the pool, size the three-way split at fresh oracle prices,
// collect the compound payment from the caller, restake it, and pay out the
// locker and caller cuts. The whole cycle holds the engine mutex; any failure
// aborts it with the error propagated unchanged.
func (e *Engine) Claim(caller crypto.Address, req ClaimRequest) (*ClaimResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if req.PrimaryAmount == nil || req.PrimaryAmount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	if req.SecondaryAmount != nil && req.SecondaryAmount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	if req.MaxAssetIn == nil || req.MaxAssetIn.Sign() < 0 {
		return nil, ErrMissingCeiling
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.cfg.Clone()
	if err := cfg.validate(e.bounds); err != nil {
		return nil, err
	}

	// PullRewards: move everything the pool has accrued into module custody
	// before any amount is sized, so the split operates on claimed balances.
	if err := e.pool.GetReward(); err != nil {
		return nil, fmt.Errorf("vault engine: pull rewards: %w", err)
	}

	primaryAmount := copyBigInt(req.PrimaryAmount)
	secondaryAmount := copyBigInt(req.SecondaryAmount)
	if secondaryAmount == nil {
		supply, err := e.secondary.TotalSupply()
		if err != nil {
			return nil, fmt.Errorf("vault engine: secondary total supply: %w", err)
		}
		secondaryAmount, err = e.schedule.MintableSecondary(primaryAmount, supply)
		if err != nil {
			return nil, err
		}
	}

	split, err := e.computeSplit(primaryAmount, secondaryAmount, cfg)
	if err != nil {
		return nil, err
	}

	// SlippageCheck: the caller's ceiling bounds the asset amount collected
	// from them; nothing has been transferred yet when this trips.
	if split.AmountToCompound.Cmp(req.MaxAssetIn) > 0 {
		return nil, ErrSlippage
	}

	// CollectPayment, Compound, Distribute, in that order. A failure after
	// the payment has been collected unwinds it: the compounded amount is
	// unstaked when it already reached the pool and the payment returned to
	// the caller, so an aborted claim leaves no balance in module custody.
	if split.AmountToCompound.Sign() > 0 {
		if err := e.asset.TransferFrom(caller, e.moduleAddress, split.AmountToCompound); err != nil {
			return nil, fmt.Errorf("vault engine: collect payment: %w", err)
		}
		if _, err := e.pool.Deposit(split.AmountToCompound, e.moduleAddress); err != nil {
			return nil, e.refundPayment(caller, split.AmountToCompound, false, fmt.Errorf("vault engine: compound: %w", err))
		}
	}
	if err := e.distribute(caller, cfg.LockerRewards, split); err != nil {
		return nil, e.refundPayment(caller, split.AmountToCompound, true, err)
	}

	result := &ClaimResult{
		PrimaryAmount:   primaryAmount,
		SecondaryAmount: secondaryAmount,
		AssetValue:      split.AssetValue,
		AmountPaidIn:    split.AmountToCompound,
		LockerCuts:      split.LockerCuts,
		CallerCuts:      split.CallerCuts,
		ConfigVersion:   e.cfgVersion,
	}

	e.appendEvent(claimedEvent{
		Caller:     caller,
		Primary:    primaryAmount,
		Secondary:  secondaryAmount,
		Compounded: split.AmountToCompound,
		LockerCuts: split.LockerCuts,
		CallerCuts: split.CallerCuts,
	})
	return result, nil
}

// refundPayment unwinds a claim that failed after the caller's payment was
/// collected: the compounded amount is unstaked when it already reached the
// pool, then the payment is transferred back to the caller. Reward cuts paid
// out before the failure stay with their recipients. The original cause is
// returned; an unwind failure is attached to it.
func (e *Engine) refundPayment(caller crypto.Address, amount *big.Int, unstake bool, cause error) error {
	if amount == nil || amount.Sign() == 0 {
		return cause
	}
	if unstake {
		if err := e.pool.Withdraw(amount, false); err != nil {
			return fmt.Errorf("%w; unwind unstake: %v", cause, err)
		}
	}
	if err := e.asset.Transfer(caller, amount); err != nil {
		return fmt.Errorf("%w; refund payment: %v", cause, err)
	}
	return cause
}

func (e *Engine) distribute(caller, locker crypto.Address, split *Split) error {
	tokens := [rewardStreams]Token{e.primary, e.secondary}
	for i, token := range tokens {
		if cut := split.LockerCuts[i]; cut != nil && cut.Sign() > 0 {
			if err := token.Transfer(locker, cut); err != nil {
				return fmt.Errorf("vault engine: pay locker cut: %w", err)
			}
		}
		if cut := split.CallerCuts[i]; cut != nil && cut.Sign() > 0 {
			if err := token.Transfer(caller, cut); err != nil {
				return fmt.Errorf("vault engine: pay caller cut: %w", err)
			}
		}
	}
	return nil
}

func (e *Engine) computeSplit(primaryAmount, secondaryAmount *big.Int, cfg Config) (*Split, error) {
	assetPrice, err := e.price(e.asset)
	if err != nil {
		return nil, err
	}

	var amounts, prices [rewardStreams]*big.Int
	amounts[StreamPrimary] = primaryAmount
	amounts[StreamSecondary] = secondaryAmount
	tokens := [rewardStreams]Token{e.primary, e.secondary}
	for i, token := range tokens {
		if amounts[i] == nil || amounts[i].Sign() == 0 {
			continue
		}
		prices[i], err = e.price(token)
		if err != nil {
			return nil, err
		}
	}
	return ComputeSplit(amounts, prices, assetPrice, cfg)
}

func (e *Engine) price(token Token) (*big.Int, error) {
	price, err := e.oracle.Price(token.Address())
	if err != nil {
		return nil, fmt.Errorf("vault engine: price %s: %w", token.Address().String(), err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrZeroPrice
	}
	return price, nil
}

// PreviewReward simulates the current claimable value without mutating state:
// it sizes the split from the pool's live earned balance, the derived
// secondary amount, and fresh oracle prices, and returns the asset amount a
// claim right now would compound.
func (e *Engine) PreviewReward() (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	cfg := e.cfg.Clone()
	e.mu.Unlock()

	earned, err := e.pool.Earned(e.moduleAddress)
	if err != nil {
		return nil, fmt.Errorf("vault engine: earned: %w", err)
	}
	earned = bigOrZero(earned)

	supply, err := e.secondary.TotalSupply()
	if err != nil {
		return nil, fmt.Errorf("vault engine: secondary total supply: %w", err)
	}
	secondaryAmount, err := e.schedule.MintableSecondary(earned, supply)
	if err != nil {
		return nil, err
	}

	if earned.Sign() == 0 && secondaryAmount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	split, err := e.computeSplit(earned, secondaryAmount, cfg)
	if err != nil {
		return nil, err
	}
	return split.AmountToCompound, nil
}

// TotalAssets reports the pooled-asset value backing all shares: the staked
// balance recorded by the reward pool plus the asset-equivalent value of
// rewards earned but not yet compounded. Omitting the second term would
// understate share value between claims.
func (e *Engine) TotalAssets() (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	staked, err := e.pool.BalanceOf(e.moduleAddress)
	if err != nil {
		return nil, fmt.Errorf("vault engine: pool balance: %w", err)
	}
	pending, err := e.PreviewReward()
	if err != nil {
		return nil, err
	}
	total := bigOrZero(staked)
	return total.Add(total, pending), nil
}

// ModuleAddress returns the custody address the engine operates under.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

func (e *Engine) ready() error {
	if e == nil {
		return errNilEngine
	}
	if e.pool == nil {
		return errNilPool
	}
	if e.oracle == nil {
		return errNilOracle
	}
	if e.asset == nil || e.primary == nil || e.secondary == nil {
		return errNilToken
	}
	if e.schedule == nil {
		return errNilSchedule
	}
	return nil
}

type eventPayload interface {
	Event() *types.Event
}

func (e *Engine) appendEvent(evt eventPayload) {
	if e.events == nil {
		return
	}
	e.events.AppendEvent(evt.Event())
}
