package server

import (
	"sync"
	"time"

	nativecommon "nhbvault/native/common"
)

// quotaLedger tracks per-caller claim quota counters in memory. Counters
// reset when the configured epoch rolls over.
type quotaLedger struct {
	mu    sync.Mutex
	quota nativecommon.Quota
	usage map[string]nativecommon.QuotaNow
	now   func() time.Time
}

func newQuotaLedger(quota nativecommon.Quota) *quotaLedger {
	return &quotaLedger{
		quota: quota,
		usage: make(map[string]nativecommon.QuotaNow),
		now:   time.Now,
	}
}

func (l *quotaLedger) enabled() bool {
	return l != nil && (l.quota.MaxRequestsPerEpoch > 0 || l.quota.MaxAssetPerEpoch > 0)
}

func (l *quotaLedger) epoch() uint64 {
	seconds := l.quota.EpochSeconds
	if seconds == 0 {
		seconds = 60
	}
	return uint64(l.now().Unix()) / uint64(seconds)
}

// reserve consumes one request slot for the caller. Asset usage is charged
// separately once the settled amount is known; a caller whose asset counter
// already sits at the ceiling is rejected before a new request is admitted.
func (l *quotaLedger) reserve(caller string) error {
	if !l.enabled() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	epoch := l.epoch()
	usage := l.usage[caller]
	if usage.EpochID == epoch && l.quota.MaxAssetPerEpoch > 0 && usage.AssetUsed >= l.quota.MaxAssetPerEpoch {
		return nativecommon.ErrQuotaAssetCapExceeded
	}
	next, err := nativecommon.CheckQuota(l.quota, epoch, usage, 1, 0)
	if err != nil {
		return err
	}
	l.usage[caller] = next
	return nil
}

// charge records settled asset volume against the caller's quota. Amounts
// past the uint64 range saturate; the request-count ceiling remains the
// effective throttle for such callers.
func (l *quotaLedger) charge(caller string, amount uint64) {
	if !l.enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	epoch := l.epoch()
	next, err := nativecommon.CheckQuota(l.quota, epoch, l.usage[caller], 0, amount)
	if err != nil {
		// The claim already settled; clamp the counter at its ceiling under
		// the current epoch so subsequent reservations are rejected.
		next = l.usage[caller]
		if next.EpochID != epoch {
			next = nativecommon.QuotaNow{EpochID: epoch}
		}
		next.AssetUsed = l.quota.MaxAssetPerEpoch
	}
	l.usage[caller] = next
}
