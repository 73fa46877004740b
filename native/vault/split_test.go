package vault

import (
	"errors"
	"math/big"
	"testing"

	"nhbvault/crypto"
)

func splitConfig(claimerBps, lockerBps uint64) Config {
	raw := make([]byte, 20)
	raw[19] = 0x0a
	return Config{
		ClaimerIncentiveBps: claimerBps,
		LockerIncentiveBps:  lockerBps,
		LockerRewards:       crypto.NewAddress(crypto.NHBPrefix, raw),
	}
}

func TestComputeSplitHappyPath(t *testing.T) {
	amounts := [rewardStreams]*big.Int{big.NewInt(1000), big.NewInt(0)}
	prices := [rewardStreams]*big.Int{big.NewInt(2), nil}

	split, err := ComputeSplit(amounts, prices, big.NewInt(1), splitConfig(500, 1000))
	if err != nil {
		t.Fatalf("compute split: %v", err)
	}
	if split.AssetValue.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("unexpected asset value: got %s want 2000", split.AssetValue)
	}
	if split.AmountToCompound.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected compound amount: got %s want 100", split.AmountToCompound)
	}
	if split.LockerCuts[StreamPrimary].Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected locker cut: got %s want 100", split.LockerCuts[StreamPrimary])
	}
	if split.CallerCuts[StreamPrimary].Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("unexpected caller cut: got %s want 900", split.CallerCuts[StreamPrimary])
	}
	if split.LockerCuts[StreamSecondary].Sign() != 0 || split.CallerCuts[StreamSecondary].Sign() != 0 {
		t.Fatalf("expected zero cuts for empty secondary stream")
	}
}

func TestComputeSplitTwoStreams(t *testing.T) {
	amounts := [rewardStreams]*big.Int{big.NewInt(1000), big.NewInt(400)}
	prices := [rewardStreams]*big.Int{big.NewInt(3), big.NewInt(5)}

	split, err := ComputeSplit(amounts, prices, big.NewInt(2), splitConfig(1000, 500))
	if err != nil {
		t.Fatalf("compute split: %v", err)
	}
	// (1000*3 + 400*5) / 2 = 2500; compound = 2500*1000/10000 = 250.
	if split.AssetValue.Cmp(big.NewInt(2500)) != 0 {
		t.Fatalf("unexpected asset value: got %s want 2500", split.AssetValue)
	}
	if split.AmountToCompound.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("unexpected compound amount: got %s want 250", split.AmountToCompound)
	}
	if split.LockerCuts[StreamSecondary].Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("unexpected secondary locker cut: got %s want 20", split.LockerCuts[StreamSecondary])
	}
	if split.CallerCuts[StreamSecondary].Cmp(big.NewInt(380)) != 0 {
		t.Fatalf("unexpected secondary caller cut: got %s want 380", split.CallerCuts[StreamSecondary])
	}
}

func TestComputeSplitLockerCutNeverExceedsAmount(t *testing.T) {
	amounts := [rewardStreams]*big.Int{big.NewInt(777), big.NewInt(13)}
	prices := [rewardStreams]*big.Int{big.NewInt(1), big.NewInt(1)}

	for lockerBps := uint64(0); lockerBps <= 10_000; lockerBps += 250 {
		split, err := ComputeSplit(amounts, prices, big.NewInt(1), splitConfig(0, lockerBps))
		if err != nil {
			t.Fatalf("locker bps %d: %v", lockerBps, err)
		}
		for i := 0; i < rewardStreams; i++ {
			if split.LockerCuts[i].Cmp(amounts[i]) > 0 {
				t.Fatalf("locker cut exceeds amount at %d bps: %s > %s", lockerBps, split.LockerCuts[i], amounts[i])
			}
			total := new(big.Int).Add(split.LockerCuts[i], split.CallerCuts[i])
			if total.Cmp(amounts[i]) != 0 {
				t.Fatalf("cuts do not sum to amount at %d bps: %s != %s", lockerBps, total, amounts[i])
			}
		}
	}
}

func TestComputeSplitRejectsZeroPrices(t *testing.T) {
	amounts := [rewardStreams]*big.Int{big.NewInt(1000), nil}
	prices := [rewardStreams]*big.Int{big.NewInt(2), nil}

	if _, err := ComputeSplit(amounts, prices, big.NewInt(0), splitConfig(500, 1000)); !errors.Is(err, ErrZeroPrice) {
		t.Fatalf("expected zero asset price error, got %v", err)
	}
	if _, err := ComputeSplit(amounts, prices, nil, splitConfig(500, 1000)); !errors.Is(err, ErrZeroPrice) {
		t.Fatalf("expected nil asset price error, got %v", err)
	}

	prices[StreamPrimary] = big.NewInt(0)
	if _, err := ComputeSplit(amounts, prices, big.NewInt(1), splitConfig(500, 1000)); !errors.Is(err, ErrZeroPrice) {
		t.Fatalf("expected zero token price error, got %v", err)
	}
	prices[StreamPrimary] = nil
	if _, err := ComputeSplit(amounts, prices, big.NewInt(1), splitConfig(500, 1000)); !errors.Is(err, ErrZeroPrice) {
		t.Fatalf("expected missing token price error, got %v", err)
	}
}

func TestComputeSplitTruncatesTowardZero(t *testing.T) {
	amounts := [rewardStreams]*big.Int{big.NewInt(3), nil}
	prices := [rewardStreams]*big.Int{big.NewInt(1), nil}

	// 3/7 truncates to 0 asset value, so nothing compounds.
	split, err := ComputeSplit(amounts, prices, big.NewInt(7), splitConfig(10_000, 3333))
	if err != nil {
		t.Fatalf("compute split: %v", err)
	}
	if split.AssetValue.Sign() != 0 {
		t.Fatalf("expected truncated asset value, got %s", split.AssetValue)
	}
	if split.AmountToCompound.Sign() != 0 {
		t.Fatalf("expected zero compound amount, got %s", split.AmountToCompound)
	}
	if split.LockerCuts[StreamPrimary].Sign() != 0 {
		t.Fatalf("expected truncated locker cut, got %s", split.LockerCuts[StreamPrimary])
	}
	if split.CallerCuts[StreamPrimary].Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("expected caller to keep full truncated stream, got %s", split.CallerCuts[StreamPrimary])
	}
}
