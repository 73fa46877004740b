package vault

import "nhbvault/crypto"

// Config holds the mutable incentive configuration for the vault. The record
// is replaced wholesale by SetConfig; individual fields are never mutated in
// place.
type Config struct {
	// ClaimerIncentiveBps sizes the fraction of the reward stream's
	// asset-equivalent value a claimer pays in to take the reward tokens.
	ClaimerIncentiveBps uint64
	// LockerIncentiveBps sizes the cut of each claimed reward stream routed
	// to the locker rewards address.
	LockerIncentiveBps uint64
	// LockerRewards receives the locker cut of every claim.
	LockerRewards crypto.Address
}

// Bounds fixes the immutable upper limits for the incentive rates. They are
// set when the engine is constructed and never change afterwards.
type Bounds struct {
	MaxClaimerIncentiveBps uint64
	MaxLockerIncentiveBps  uint64
}

// Clone returns a copy of the configuration safe to hand to callers.
func (c Config) Clone() Config {
	clone := Config{
		ClaimerIncentiveBps: c.ClaimerIncentiveBps,
		LockerIncentiveBps:  c.LockerIncentiveBps,
	}
	if b := c.LockerRewards.Bytes(); b != nil {
		clone.LockerRewards = crypto.NewAddress(c.LockerRewards.Prefix(), append([]byte(nil), b...))
	}
	return clone
}

func (c Config) validate(bounds Bounds) error {
	if c.ClaimerIncentiveBps > bounds.MaxClaimerIncentiveBps {
		return errRateAboveMax
	}
	if c.LockerIncentiveBps > bounds.MaxLockerIncentiveBps {
		return errRateAboveMax
	}
	if len(c.LockerRewards.Bytes()) == 0 {
		return ErrLockerRewardsUnset
	}
	return nil
}
