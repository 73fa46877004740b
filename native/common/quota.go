package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaAssetCapExceeded = errors.New("quota asset cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	ReqCount  uint32
	AssetUsed uint64
	EpochID   uint64
}

// Quota defines the limits enforced for a module interaction per address:
// a request count ceiling and an asset-denominated volume ceiling per epoch.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxAssetPerEpoch    uint64
	EpochSeconds        uint32
}

// CheckQuota verifies whether the additional request and asset usage fit
// within the configured quota. The returned QuotaNow reflects the updated
// counters when the quota is not exceeded; on rejection the previous counters
// are returned unchanged.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addAsset uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addAsset > 0 {
		if next.AssetUsed > math.MaxUint64-addAsset {
			return prev, ErrQuotaCounterOverflow
		}
		next.AssetUsed += addAsset
	}
	if q.MaxAssetPerEpoch > 0 && next.AssetUsed > q.MaxAssetPerEpoch {
		return prev, ErrQuotaAssetCapExceeded
	}

	return next, nil
}
