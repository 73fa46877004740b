package vault

import (
	"math/big"
	"strconv"

	"nhbvault/core/types"
	"nhbvault/crypto"
)

const (
	TypeClaimed       = "vault.claimed"
	TypeConfigUpdated = "vault.config.updated"
	TypeDeposited     = "vault.deposited"
	TypeWithdrawn     = "vault.withdrawn"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr crypto.Address) string {
	if len(addr.Bytes()) == 0 {
		return ""
	}
	return addr.String()
}

type claimedEvent struct {
	Caller     crypto.Address
	Primary    *big.Int
	Secondary  *big.Int
	Compounded *big.Int
	LockerCuts [rewardStreams]*big.Int
	CallerCuts [rewardStreams]*big.Int
}

func (e claimedEvent) Event() *types.Event {
	return &types.Event{
		Type: TypeClaimed,
		Attributes: map[string]string{
			"caller":             formatAddress(e.Caller),
			"primaryAmount":      formatAmount(e.Primary),
			"secondaryAmount":    formatAmount(e.Secondary),
			"compoundedAmount":   formatAmount(e.Compounded),
			"lockerCutPrimary":   formatAmount(e.LockerCuts[StreamPrimary]),
			"lockerCutSecondary": formatAmount(e.LockerCuts[StreamSecondary]),
			"callerCutPrimary":   formatAmount(e.CallerCuts[StreamPrimary]),
			"callerCutSecondary": formatAmount(e.CallerCuts[StreamSecondary]),
		},
	}
}

type configUpdatedEvent struct {
	Version uint64
	Config  Config
}

func (e configUpdatedEvent) Event() *types.Event {
	return &types.Event{
		Type: TypeConfigUpdated,
		Attributes: map[string]string{
			"version":             strconv.FormatUint(e.Version, 10),
			"claimerIncentiveBps": strconv.FormatUint(e.Config.ClaimerIncentiveBps, 10),
			"lockerIncentiveBps":  strconv.FormatUint(e.Config.LockerIncentiveBps, 10),
			"lockerRewards":       formatAddress(e.Config.LockerRewards),
		},
	}
}

type depositedEvent struct {
	Account crypto.Address
	Amount  *big.Int
	Shares  *big.Int
}

func (e depositedEvent) Event() *types.Event {
	return &types.Event{
		Type: TypeDeposited,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"amount":  formatAmount(e.Amount),
			"shares":  formatAmount(e.Shares),
		},
	}
}

type withdrawnEvent struct {
	Account crypto.Address
	Amount  *big.Int
}

func (e withdrawnEvent) Event() *types.Event {
	return &types.Event{
		Type: TypeWithdrawn,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"amount":  formatAmount(e.Amount),
		},
	}
}
