package vault

import "math/big"

// Emission curve constants. Each cliff reduces the per-primary mint rate; the
// reduction term decays linearly in 2.5-per-cliff steps on top of a constant
// 700 floor, expressed against TotalCliffs.
const (
	reductionMultiplier = 5
	reductionDivisor    = 2
	reductionFloor      = 700
)

// EmissionSchedule models the decaying mint schedule of the secondary reward
// token. The schedule is derived, not stored: every evaluation starts from the
// secondary token's live total supply. ExternallyMinted, when set, reports the
// portion of supply minted outside this schedule so it can be excluded from
// the cliff accounting; a nil hook counts no external mints.
type EmissionSchedule struct {
	InitialMint       *big.Int
	ReductionPerCliff *big.Int
	MaxEmissionSupply *big.Int
	TotalCliffs       uint64
	ExternallyMinted  func() *big.Int
}

// Clone returns a deep copy of the schedule parameters. The ExternallyMinted
// hook is shared, not copied.
func (s *EmissionSchedule) Clone() *EmissionSchedule {
	if s == nil {
		return nil
	}
	clone := &EmissionSchedule{
		TotalCliffs:      s.TotalCliffs,
		ExternallyMinted: s.ExternallyMinted,
	}
	if s.InitialMint != nil {
		clone.InitialMint = new(big.Int).Set(s.InitialMint)
	}
	if s.ReductionPerCliff != nil {
		clone.ReductionPerCliff = new(big.Int).Set(s.ReductionPerCliff)
	}
	if s.MaxEmissionSupply != nil {
		clone.MaxEmissionSupply = new(big.Int).Set(s.MaxEmissionSupply)
	}
	return clone
}

func (s *EmissionSchedule) validate() error {
	if s == nil {
		return errNilSchedule
	}
	if s.InitialMint == nil || s.InitialMint.Sign() < 0 {
		return errScheduleParams
	}
	if s.ReductionPerCliff == nil || s.ReductionPerCliff.Sign() <= 0 {
		return errScheduleParams
	}
	if s.MaxEmissionSupply == nil || s.MaxEmissionSupply.Sign() <= 0 {
		return errScheduleParams
	}
	if s.TotalCliffs == 0 {
		return errScheduleParams
	}
	return nil
}

// emissionsMinted derives how much of the secondary supply this schedule has
// already minted: live supply minus the initial mint minus external mints.
// A result below zero (supply not yet past the initial mint) counts as zero.
func (s *EmissionSchedule) emissionsMinted(secondaryTotalSupply *big.Int) *big.Int {
	minted := new(big.Int).Sub(secondaryTotalSupply, s.InitialMint)
	if s.ExternallyMinted != nil {
		if external := s.ExternallyMinted(); external != nil {
			minted.Sub(minted, external)
		}
	}
	if minted.Sign() < 0 {
		minted.SetInt64(0)
	}
	return minted
}

// MintableSecondary returns how much secondary token the schedule mints for
// primaryAmount of claimed primary reward, given the secondary token's current
// total supply. The result is zero once the cliff schedule is exhausted and is
// always clamped to the remaining headroom below MaxEmissionSupply.
func (s *EmissionSchedule) MintableSecondary(primaryAmount, secondaryTotalSupply *big.Int) (*big.Int, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if primaryAmount == nil || secondaryTotalSupply == nil {
		return nil, ErrNegativeAmount
	}
	if primaryAmount.Sign() < 0 || secondaryTotalSupply.Sign() < 0 {
		return nil, ErrNegativeAmount
	}

	minted := s.emissionsMinted(secondaryTotalSupply)
	cliff := new(big.Int).Quo(minted, s.ReductionPerCliff)

	totalCliffs := new(big.Int).SetUint64(s.TotalCliffs)
	if cliff.Cmp(totalCliffs) >= 0 {
		return big.NewInt(0), nil
	}

	// reduction = (totalCliffs - cliff) * 5 / 2 + 700, truncating at each step.
	reduction := new(big.Int).Sub(totalCliffs, cliff)
	reduction.Mul(reduction, big.NewInt(reductionMultiplier))
	reduction.Quo(reduction, big.NewInt(reductionDivisor))
	reduction.Add(reduction, big.NewInt(reductionFloor))

	amount := new(big.Int).Mul(primaryAmount, reduction)
	amount.Quo(amount, totalCliffs)

	remaining := new(big.Int).Sub(s.MaxEmissionSupply, minted)
	if remaining.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if amount.Cmp(remaining) > 0 {
		amount.Set(remaining)
	}
	return amount, nil
}
