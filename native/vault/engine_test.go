package vault

import (
	"errors"
	"math/big"
	"testing"

	"nhbvault/core/types"
	"nhbvault/crypto"
	nativecommon "nhbvault/native/common"
)

func makeAddress(prefix crypto.AddressPrefix, suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(prefix, raw)
}

type transferRecord struct {
	token  string
	from   string
	to     string
	amount *big.Int
}

type fakeToken struct {
	name     string
	addr     crypto.Address
	module   crypto.Address
	supply   *big.Int
	log      *[]transferRecord
	failNext error
}

func (f *fakeToken) Address() crypto.Address { return f.addr }

func (f *fakeToken) TotalSupply() (*big.Int, error) {
	if f.supply == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(f.supply), nil
}

func (f *fakeToken) Transfer(to crypto.Address, amount *big.Int) error {
	return f.record(f.module, to, amount)
}

func (f *fakeToken) TransferFrom(from, to crypto.Address, amount *big.Int) error {
	return f.record(from, to, amount)
}

func (f *fakeToken) record(from, to crypto.Address, amount *big.Int) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	*f.log = append(*f.log, transferRecord{
		token:  f.name,
		from:   from.String(),
		to:     to.String(),
		amount: new(big.Int).Set(amount),
	})
	return nil
}

type fakePool struct {
	staked       *big.Int
	earned       *big.Int
	rewardPulled int
	depositCalls int
	failDeposit  error
	failReward   error
}

func (f *fakePool) Deposit(amount *big.Int, _ crypto.Address) (*big.Int, error) {
	if f.failDeposit != nil {
		return nil, f.failDeposit
	}
	f.depositCalls++
	f.staked.Add(f.staked, amount)
	return new(big.Int).Set(amount), nil
}

func (f *fakePool) Withdraw(amount *big.Int, _ bool) error {
	if f.staked.Cmp(amount) < 0 {
		return errors.New("insufficient staked balance")
	}
	f.staked.Sub(f.staked, amount)
	return nil
}

func (f *fakePool) BalanceOf(crypto.Address) (*big.Int, error) {
	return new(big.Int).Set(f.staked), nil
}

func (f *fakePool) GetReward() error {
	if f.failReward != nil {
		return f.failReward
	}
	f.rewardPulled++
	return nil
}

func (f *fakePool) Earned(crypto.Address) (*big.Int, error) {
	return new(big.Int).Set(f.earned), nil
}

type fakeOracle struct {
	prices map[string]*big.Int
	err    error
}

func (f *fakeOracle) Price(token crypto.Address) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	price, ok := f.prices[token.String()]
	if !ok {
		return nil, errors.New("unsupported token")
	}
	return new(big.Int).Set(price), nil
}

type eventRecorder struct {
	events []*types.Event
}

func (r *eventRecorder) AppendEvent(evt *types.Event) {
	r.events = append(r.events, evt)
}

func (r *eventRecorder) lastType() string {
	if len(r.events) == 0 {
		return ""
	}
	return r.events[len(r.events)-1].Type
}

type testHarness struct {
	engine    *Engine
	pool      *fakePool
	oracle    *fakeOracle
	asset     *fakeToken
	primary   *fakeToken
	secondary *fakeToken
	events    *eventRecorder
	transfers []transferRecord
	module    crypto.Address
	caller    crypto.Address
	locker    crypto.Address
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		module: makeAddress(crypto.NHBPrefix, 0x01),
		caller: makeAddress(crypto.NHBPrefix, 0x02),
		locker: makeAddress(crypto.NHBPrefix, 0x03),
	}

	h.asset = &fakeToken{name: "asset", addr: makeAddress(crypto.ZNHBPrefix, 0x10), module: h.module, log: &h.transfers}
	h.primary = &fakeToken{name: "primary", addr: makeAddress(crypto.ZNHBPrefix, 0x11), module: h.module, log: &h.transfers}
	h.secondary = &fakeToken{name: "secondary", addr: makeAddress(crypto.ZNHBPrefix, 0x12), module: h.module, log: &h.transfers}

	schedule := testSchedule()
	// Default the secondary supply past the final cliff so claims that do not
	// exercise the curve derive a zero secondary amount.
	h.secondary.supply = supplyForMinted(schedule, new(big.Int).Mul(big.NewInt(500), schedule.ReductionPerCliff))

	h.pool = &fakePool{staked: big.NewInt(5000), earned: big.NewInt(0)}
	h.oracle = &fakeOracle{prices: map[string]*big.Int{
		h.asset.addr.String():     big.NewInt(1),
		h.primary.addr.String():   big.NewInt(2),
		h.secondary.addr.String(): big.NewInt(1),
	}}
	h.events = &eventRecorder{}

	engine := NewEngine(h.module, Bounds{MaxClaimerIncentiveBps: 2500, MaxLockerIncentiveBps: 2000})
	engine.SetRewardPool(h.pool)
	engine.SetOracle(h.oracle)
	engine.SetTokens(h.asset, h.primary, h.secondary)
	engine.SetEmissionSchedule(schedule)
	engine.SetEventSink(h.events)
	if err := engine.SetConfig(Config{ClaimerIncentiveBps: 500, LockerIncentiveBps: 1000, LockerRewards: h.locker}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	h.engine = engine
	return h
}

func (h *testHarness) claimRequest(primary int64, maxIn int64) ClaimRequest {
	return ClaimRequest{
		PrimaryAmount:   big.NewInt(primary),
		SecondaryAmount: big.NewInt(0),
		MaxAssetIn:      big.NewInt(maxIn),
	}
}

func TestClaimHappyPath(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.engine.Claim(h.caller, h.claimRequest(1000, 100))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if result.AssetValue.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("unexpected asset value: got %s want 2000", result.AssetValue)
	}
	if result.AmountPaidIn.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected amount paid in: got %s want 100", result.AmountPaidIn)
	}
	if result.LockerCuts[StreamPrimary].Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected locker cut: got %s", result.LockerCuts[StreamPrimary])
	}
	if result.CallerCuts[StreamPrimary].Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("unexpected caller cut: got %s", result.CallerCuts[StreamPrimary])
	}

	if h.pool.rewardPulled != 1 {
		t.Fatalf("expected one reward pull, got %d", h.pool.rewardPulled)
	}
	if h.pool.staked.Cmp(big.NewInt(5100)) != 0 {
		t.Fatalf("compound amount not restaked: staked %s", h.pool.staked)
	}

	want := []transferRecord{
		{token: "asset", from: h.caller.String(), to: h.module.String(), amount: big.NewInt(100)},
		{token: "primary", from: h.module.String(), to: h.locker.String(), amount: big.NewInt(100)},
		{token: "primary", from: h.module.String(), to: h.caller.String(), amount: big.NewInt(900)},
	}
	if len(h.transfers) != len(want) {
		t.Fatalf("unexpected transfer count: got %d want %d", len(h.transfers), len(want))
	}
	for i, rec := range want {
		got := h.transfers[i]
		if got.token != rec.token || got.from != rec.from || got.to != rec.to || got.amount.Cmp(rec.amount) != 0 {
			t.Fatalf("transfer %d mismatch: got %+v want %+v", i, got, rec)
		}
	}

	if h.events.lastType() != TypeClaimed {
		t.Fatalf("expected %s event, got %q", TypeClaimed, h.events.lastType())
	}
}

func TestClaimDerivesSecondaryFromSchedule(t *testing.T) {
	h := newTestHarness(t)
	schedule := testSchedule()
	// Supply at the initial mint: cliff 0, reduction 1950.
	h.secondary.supply = new(big.Int).Set(schedule.InitialMint)

	result, err := h.engine.Claim(h.caller, ClaimRequest{
		PrimaryAmount: big.NewInt(1000),
		MaxAssetIn:    big.NewInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// secondary = 1000*1950/500 = 3900.
	if result.SecondaryAmount.Cmp(big.NewInt(3900)) != 0 {
		t.Fatalf("unexpected derived secondary amount: got %s want 3900", result.SecondaryAmount)
	}
	// assetValue = (1000*2 + 3900*1) / 1 = 5900; paid in = 5900*500/10000.
	if result.AmountPaidIn.Cmp(big.NewInt(295)) != 0 {
		t.Fatalf("unexpected amount paid in: got %s want 295", result.AmountPaidIn)
	}
	if result.LockerCuts[StreamSecondary].Cmp(big.NewInt(390)) != 0 {
		t.Fatalf("unexpected secondary locker cut: got %s want 390", result.LockerCuts[StreamSecondary])
	}
	if result.CallerCuts[StreamSecondary].Cmp(big.NewInt(3510)) != 0 {
		t.Fatalf("unexpected secondary caller cut: got %s want 3510", result.CallerCuts[StreamSecondary])
	}
}

func TestClaimSlippageAbortsBeforeTransfers(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.engine.Claim(h.caller, h.claimRequest(1000, 99))
	if !errors.Is(err, ErrSlippage) {
		t.Fatalf("expected slippage error, got %v", err)
	}
	if len(h.transfers) != 0 {
		t.Fatalf("expected zero transfers on slippage abort, got %d", len(h.transfers))
	}
	if h.pool.depositCalls != 0 {
		t.Fatalf("expected no compounding on slippage abort")
	}
	if h.pool.staked.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("staked balance changed on aborted claim: %s", h.pool.staked)
	}
}

func TestClaimZeroPriceIsFatal(t *testing.T) {
	h := newTestHarness(t)
	h.oracle.prices[h.primary.addr.String()] = big.NewInt(0)

	_, err := h.engine.Claim(h.caller, h.claimRequest(1000, 100))
	if !errors.Is(err, ErrZeroPrice) {
		t.Fatalf("expected zero price error, got %v", err)
	}
	if len(h.transfers) != 0 {
		t.Fatalf("expected zero transfers on price failure, got %d", len(h.transfers))
	}
}

func TestClaimOracleFailurePropagates(t *testing.T) {
	h := newTestHarness(t)
	h.oracle.err = errors.New("feed stale")

	_, err := h.engine.Claim(h.caller, h.claimRequest(1000, 100))
	if err == nil {
		t.Fatalf("expected oracle failure to propagate")
	}
	if len(h.transfers) != 0 {
		t.Fatalf("expected zero transfers on oracle failure")
	}
}

func TestClaimPoolFailureAborts(t *testing.T) {
	h := newTestHarness(t)
	h.pool.failReward = errors.New("pool unavailable")

	if _, err := h.engine.Claim(h.caller, h.claimRequest(1000, 100)); err == nil {
		t.Fatalf("expected reward pull failure to abort the claim")
	}
	if len(h.transfers) != 0 {
		t.Fatalf("expected zero transfers when reward pull fails")
	}
}

func TestClaimValidatesRequest(t *testing.T) {
	h := newTestHarness(t)

	if _, err := h.engine.Claim(h.caller, ClaimRequest{PrimaryAmount: big.NewInt(-1), MaxAssetIn: big.NewInt(0)}); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected negative amount rejection, got %v", err)
	}
	if _, err := h.engine.Claim(h.caller, ClaimRequest{PrimaryAmount: big.NewInt(1)}); !errors.Is(err, ErrMissingCeiling) {
		t.Fatalf("expected missing ceiling rejection, got %v", err)
	}
}

func TestClaimRequiresLockerRewardsAddress(t *testing.T) {
	h := newTestHarness(t)
	engine := NewEngine(h.module, h.engine.Bounds())
	engine.SetRewardPool(h.pool)
	engine.SetOracle(h.oracle)
	engine.SetTokens(h.asset, h.primary, h.secondary)
	engine.SetEmissionSchedule(testSchedule())

	if _, err := engine.Claim(h.caller, h.claimRequest(1000, 100)); !errors.Is(err, ErrLockerRewardsUnset) {
		t.Fatalf("expected unset locker rewards rejection, got %v", err)
	}
}

type pausedView struct{}

func (pausedView) IsPaused(string) bool { return true }

func TestClaimRespectsPause(t *testing.T) {
	h := newTestHarness(t)
	h.engine.SetPauses(pausedView{})

	if _, err := h.engine.Claim(h.caller, h.claimRequest(1000, 100)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected pause rejection, got %v", err)
	}
}

func TestSetConfigValidation(t *testing.T) {
	h := newTestHarness(t)
	before := h.engine.Config()
	beforeVersion := h.engine.ConfigVersion()

	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"claimer above max", Config{ClaimerIncentiveBps: 2501, LockerIncentiveBps: 1000, LockerRewards: h.locker}, errRateAboveMax},
		{"locker above max", Config{ClaimerIncentiveBps: 500, LockerIncentiveBps: 2001, LockerRewards: h.locker}, errRateAboveMax},
		{"missing locker rewards", Config{ClaimerIncentiveBps: 500, LockerIncentiveBps: 1000}, ErrLockerRewardsUnset},
	}
	for _, tc := range cases {
		if err := h.engine.SetConfig(tc.cfg); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		after := h.engine.Config()
		if after.ClaimerIncentiveBps != before.ClaimerIncentiveBps || after.LockerIncentiveBps != before.LockerIncentiveBps {
			t.Fatalf("%s: rejected config mutated state", tc.name)
		}
		if h.engine.ConfigVersion() != beforeVersion {
			t.Fatalf("%s: rejected config bumped version", tc.name)
		}
	}

	next := Config{ClaimerIncentiveBps: 750, LockerIncentiveBps: 1500, LockerRewards: h.locker}
	if err := h.engine.SetConfig(next); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if h.engine.ConfigVersion() != beforeVersion+1 {
		t.Fatalf("expected version bump after successful replace")
	}
	if h.events.lastType() != TypeConfigUpdated {
		t.Fatalf("expected %s event, got %q", TypeConfigUpdated, h.events.lastType())
	}
	got := h.engine.Config()
	if got.ClaimerIncentiveBps != 750 || got.LockerIncentiveBps != 1500 {
		t.Fatalf("config not replaced atomically: %+v", got)
	}
}

func TestPreviewRewardDoesNotMutate(t *testing.T) {
	h := newTestHarness(t)
	h.pool.earned = big.NewInt(1000)

	preview, err := h.engine.PreviewReward()
	if err != nil {
		t.Fatalf("preview reward: %v", err)
	}
	// 1000 earned at price 2 -> 2000 asset value -> 100 to compound.
	if preview.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected preview: got %s want 100", preview)
	}
	if h.pool.rewardPulled != 0 {
		t.Fatalf("preview pulled rewards")
	}
	if len(h.transfers) != 0 {
		t.Fatalf("preview performed transfers")
	}
}

func TestTotalAssetsIncludesPendingRewards(t *testing.T) {
	h := newTestHarness(t)
	h.pool.earned = big.NewInt(1000)

	total, err := h.engine.TotalAssets()
	if err != nil {
		t.Fatalf("total assets: %v", err)
	}
	if total.Cmp(big.NewInt(5100)) != 0 {
		t.Fatalf("unexpected total assets: got %s want 5100", total)
	}
}

func TestDepositRoundTrip(t *testing.T) {
	h := newTestHarness(t)

	before, err := h.engine.TotalAssets()
	if err != nil {
		t.Fatalf("total assets: %v", err)
	}

	shares, err := h.engine.Deposit(h.caller, big.NewInt(200))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if shares.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected pool shares: got %s", shares)
	}

	after, err := h.engine.TotalAssets()
	if err != nil {
		t.Fatalf("total assets: %v", err)
	}
	want := new(big.Int).Add(before, big.NewInt(200))
	if after.Cmp(want) != 0 {
		t.Fatalf("deposit round trip mismatch: got %s want %s", after, want)
	}

	if err := h.engine.Withdraw(h.caller, big.NewInt(200)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	final, err := h.engine.TotalAssets()
	if err != nil {
		t.Fatalf("total assets: %v", err)
	}
	if final.Cmp(before) != 0 {
		t.Fatalf("withdraw did not restore total assets: got %s want %s", final, before)
	}
}

func TestClaimCollectFailureStopsCompounding(t *testing.T) {
	h := newTestHarness(t)
	h.asset.failNext = errors.New("transfer rejected")

	if _, err := h.engine.Claim(h.caller, h.claimRequest(1000, 100)); err == nil {
		t.Fatalf("expected payment collection failure to abort")
	}
	if h.pool.depositCalls != 0 {
		t.Fatalf("compound ran after failed payment collection")
	}
	if len(h.transfers) != 0 {
		t.Fatalf("expected no completed transfers, got %d", len(h.transfers))
	}
}

func TestClaimCompoundFailureRefundsPayment(t *testing.T) {
	h := newTestHarness(t)
	h.pool.failDeposit = errors.New("pool rejected deposit")

	if _, err := h.engine.Claim(h.caller, h.claimRequest(1000, 100)); err == nil {
		t.Fatalf("expected compound failure to abort the claim")
	}
	if h.pool.staked.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("staked balance changed on aborted claim: %s", h.pool.staked)
	}

	want := []transferRecord{
		{token: "asset", from: h.caller.String(), to: h.module.String(), amount: big.NewInt(100)},
		{token: "asset", from: h.module.String(), to: h.caller.String(), amount: big.NewInt(100)},
	}
	if len(h.transfers) != len(want) {
		t.Fatalf("unexpected transfer count: got %d want %d", len(h.transfers), len(want))
	}
	for i, rec := range want {
		got := h.transfers[i]
		if got.token != rec.token || got.from != rec.from || got.to != rec.to || got.amount.Cmp(rec.amount) != 0 {
			t.Fatalf("transfer %d mismatch: got %+v want %+v", i, got, rec)
		}
	}
	if h.events.lastType() == TypeClaimed {
		t.Fatalf("aborted claim emitted a claimed event")
	}
}

func TestClaimDistributeFailureUnwindsCompound(t *testing.T) {
	h := newTestHarness(t)
	h.primary.failNext = errors.New("reward transfer rejected")

	if _, err := h.engine.Claim(h.caller, h.claimRequest(1000, 100)); err == nil {
		t.Fatalf("expected distribution failure to abort the claim")
	}
	if h.pool.depositCalls != 1 {
		t.Fatalf("expected one compound attempt, got %d", h.pool.depositCalls)
	}
	if h.pool.staked.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("compounded amount not unstaked on aborted claim: %s", h.pool.staked)
	}

	want := []transferRecord{
		{token: "asset", from: h.caller.String(), to: h.module.String(), amount: big.NewInt(100)},
		{token: "asset", from: h.module.String(), to: h.caller.String(), amount: big.NewInt(100)},
	}
	if len(h.transfers) != len(want) {
		t.Fatalf("unexpected transfer count: got %d want %d", len(h.transfers), len(want))
	}
	for i, rec := range want {
		got := h.transfers[i]
		if got.token != rec.token || got.from != rec.from || got.to != rec.to || got.amount.Cmp(rec.amount) != 0 {
			t.Fatalf("transfer %d mismatch: got %+v want %+v", i, got, rec)
		}
	}
	if h.events.lastType() == TypeClaimed {
		t.Fatalf("aborted claim emitted a claimed event")
	}
}
