package vault

import "math/big"

var basisPoints = big.NewInt(10_000)

// Split carries the three-way division of one claim: the locker cut and caller
// cut of each reward stream, the asset-equivalent value of the whole stream,
// and the asset amount the caller pays in to be compounded.
type Split struct {
	LockerCuts       [rewardStreams]*big.Int
	CallerCuts       [rewardStreams]*big.Int
	AssetValue       *big.Int
	AmountToCompound *big.Int
}

// payoutCuts splits one claimed stream: the locker takes lockerBps of it, the
// caller receives the remainder. The two cuts always sum to the full amount.
func payoutCuts(amount *big.Int, lockerBps uint64) (locker, caller *big.Int) {
	locker = new(big.Int).Mul(amount, new(big.Int).SetUint64(lockerBps))
	locker.Quo(locker, basisPoints)
	caller = new(big.Int).Sub(amount, locker)
	return locker, caller
}

// compoundAmount sizes the asset payment the caller owes for the claim:
// claimerBps of the stream's asset-equivalent value, truncating.
func compoundAmount(assetValue *big.Int, claimerBps uint64) *big.Int {
	amount := new(big.Int).Mul(assetValue, new(big.Int).SetUint64(claimerBps))
	return amount.Quo(amount, basisPoints)
}

// ComputeSplit derives the deterministic claim split from raw reward amounts,
// per-token USD prices, the pooled asset's USD price, and the current config.
// All prices must share one fixed-point scale; the scale cancels in the
// conversion to asset units. A zero or missing price for a token with a
// non-zero amount is a fatal precondition, never coerced to a zero value.
func ComputeSplit(amounts, prices [rewardStreams]*big.Int, assetPrice *big.Int, cfg Config) (*Split, error) {
	if assetPrice == nil || assetPrice.Sign() <= 0 {
		return nil, ErrZeroPrice
	}

	split := &Split{AssetValue: big.NewInt(0)}
	usdValue := new(big.Int)
	for i := 0; i < rewardStreams; i++ {
		amount := bigOrZero(amounts[i])
		if amount.Sign() < 0 {
			return nil, ErrNegativeAmount
		}
		if amount.Sign() > 0 {
			if prices[i] == nil || prices[i].Sign() <= 0 {
				return nil, ErrZeroPrice
			}
			usdValue.Add(usdValue, new(big.Int).Mul(amount, prices[i]))
		}
		split.LockerCuts[i], split.CallerCuts[i] = payoutCuts(amount, cfg.LockerIncentiveBps)
	}

	split.AssetValue.Quo(usdValue, assetPrice)
	split.AmountToCompound = compoundAmount(split.AssetValue, cfg.ClaimerIncentiveBps)
	return split, nil
}
