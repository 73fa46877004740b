package vault

import "errors"

var (
	errNilEngine      = errors.New("vault engine: engine not initialised")
	errNilPool        = errors.New("vault engine: reward pool not configured")
	errNilOracle      = errors.New("vault engine: price oracle not configured")
	errNilToken       = errors.New("vault engine: token bindings not configured")
	errNilSchedule    = errors.New("vault engine: emission schedule not configured")
	errInvalidAmount  = errors.New("vault engine: amount must be positive")
	errRateAboveMax   = errors.New("vault engine: incentive rate exceeds maximum")
	errScheduleParams = errors.New("vault engine: emission schedule parameters not positive")
)

// Client-facing claim errors. Service layers translate these into client
// responses: ErrSlippage is retryable with a higher ceiling, the rest reject
// the request or its preconditions outright.
var (
	ErrSlippage           = errors.New("vault engine: compound amount exceeds max asset amount in")
	ErrNegativeAmount     = errors.New("vault engine: amount must not be negative")
	ErrMissingCeiling     = errors.New("vault engine: max asset amount in required")
	ErrZeroPrice          = errors.New("vault engine: oracle returned zero price")
	ErrLockerRewardsUnset = errors.New("vault engine: locker rewards address not configured")
)
