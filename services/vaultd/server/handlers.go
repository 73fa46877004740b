package server

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhbvault/crypto"
	nativecommon "nhbvault/native/common"
	"nhbvault/native/vault"
	"nhbvault/services/vaultd/storage"
)

const requestLimit = 1 << 20 // 1 MiB

type claimRequestPayload struct {
	Caller          string `json:"caller"`
	PrimaryAmount   string `json:"primaryAmount"`
	SecondaryAmount string `json:"secondaryAmount,omitempty"`
	MaxAssetIn      string `json:"maxAssetAmountIn"`
}

type claimResponsePayload struct {
	ID              string `json:"id"`
	PrimaryAmount   string `json:"primaryAmount"`
	SecondaryAmount string `json:"secondaryAmount"`
	AssetValue      string `json:"assetValue"`
	AmountPaidIn    string `json:"amountPaidIn"`
	ConfigVersion   uint64 `json:"configVersion"`
}

type configPayload struct {
	ClaimerIncentiveBps uint64 `json:"claimerIncentiveBps"`
	LockerIncentiveBps  uint64 `json:"lockerIncentiveBps"`
	LockerRewards       string `json:"lockerRewards"`
	Version             uint64 `json:"version,omitempty"`
}

type pausePayload struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var payload claimRequestPayload
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	caller, err := crypto.DecodeAddress(strings.TrimSpace(payload.Caller))
	if err != nil {
		http.Error(w, "invalid caller address", http.StatusBadRequest)
		return
	}
	primary, err := parseAmount(payload.PrimaryAmount, true)
	if err != nil {
		http.Error(w, "invalid primary amount", http.StatusBadRequest)
		return
	}
	maxAssetIn, err := parseAmount(payload.MaxAssetIn, true)
	if err != nil {
		http.Error(w, "invalid max asset amount in", http.StatusBadRequest)
		return
	}
	var secondary *big.Int
	if strings.TrimSpace(payload.SecondaryAmount) != "" {
		if secondary, err = parseAmount(payload.SecondaryAmount, true); err != nil {
			http.Error(w, "invalid secondary amount", http.StatusBadRequest)
			return
		}
	}

	if err := s.quota.reserve(caller.String()); err != nil {
		s.metrics.RecordClaim("throttled", 0, nil)
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	started := time.Now()
	result, err := s.engine.Claim(caller, vault.ClaimRequest{
		PrimaryAmount:   primary,
		SecondaryAmount: secondary,
		MaxAssetIn:      maxAssetIn,
	})
	if err != nil {
		s.metrics.RecordClaim(claimOutcome(err), time.Since(started), nil)
		s.logger.Warn("claim rejected", "caller", caller.String(), "error", err.Error())
		http.Error(w, err.Error(), claimStatus(err))
		return
	}
	s.metrics.RecordClaim("settled", time.Since(started), result.AmountPaidIn)
	s.quota.charge(caller.String(), saturatingUint64(result.AmountPaidIn))

	id, err := s.storage.RecordClaim(r.Context(), storage.ClaimRecord{
		Caller:        caller.String(),
		Primary:       result.PrimaryAmount,
		Secondary:     result.SecondaryAmount,
		AssetValue:    result.AssetValue,
		Compounded:    result.AmountPaidIn,
		ConfigVersion: result.ConfigVersion,
	})
	if err != nil {
		// The claim settled on-chain; history is best-effort.
		s.logger.Error("persist claim", "error", err.Error())
	}

	s.logger.Info("claim settled",
		"caller", caller.String(),
		"amountPaidIn", result.AmountPaidIn.String(),
		"configVersion", result.ConfigVersion,
	)
	writeJSON(w, http.StatusOK, claimResponsePayload{
		ID:              id,
		PrimaryAmount:   result.PrimaryAmount.String(),
		SecondaryAmount: result.SecondaryAmount.String(),
		AssetValue:      result.AssetValue.String(),
		AmountPaidIn:    result.AmountPaidIn.String(),
		ConfigVersion:   result.ConfigVersion,
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	preview, err := s.engine.PreviewReward()
	if err != nil {
		s.metrics.RecordOracleError()
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.metrics.RecordPreview()
	writeJSON(w, http.StatusOK, map[string]string{"estimatedCompoundAmount": preview.String()})
}

func (s *Server) handleTotalAssets(w http.ResponseWriter, _ *http.Request) {
	total, err := s.engine.TotalAssets()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"totalAssets": total.String()})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := s.engine.Config()
	writeJSON(w, http.StatusOK, configPayload{
		ClaimerIncentiveBps: cfg.ClaimerIncentiveBps,
		LockerIncentiveBps:  cfg.LockerIncentiveBps,
		LockerRewards:       addressString(cfg.LockerRewards),
		Version:             s.engine.ConfigVersion(),
	})
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var payload configPayload
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	locker, err := crypto.DecodeAddress(strings.TrimSpace(payload.LockerRewards))
	if err != nil {
		http.Error(w, "invalid locker rewards address", http.StatusBadRequest)
		return
	}

	cfg := vault.Config{
		ClaimerIncentiveBps: payload.ClaimerIncentiveBps,
		LockerIncentiveBps:  payload.LockerIncentiveBps,
		LockerRewards:       locker,
	}
	if err := s.engine.SetConfig(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	version := s.engine.ConfigVersion()
	if err := s.storage.RecordConfig(r.Context(), storage.ConfigRecord{
		Version:             version,
		ClaimerIncentiveBps: cfg.ClaimerIncentiveBps,
		LockerIncentiveBps:  cfg.LockerIncentiveBps,
		LockerRewards:       locker.String(),
	}); err != nil {
		s.logger.Error("persist config version", "error", err.Error())
	}

	s.logger.Info("config replaced",
		"version", version,
		"claimerIncentiveBps", cfg.ClaimerIncentiveBps,
		"lockerIncentiveBps", cfg.LockerIncentiveBps,
	)
	writeJSON(w, http.StatusOK, configPayload{
		ClaimerIncentiveBps: cfg.ClaimerIncentiveBps,
		LockerIncentiveBps:  cfg.LockerIncentiveBps,
		LockerRewards:       locker.String(),
		Version:             version,
	})
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	records, err := s.storage.ListClaims(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	payload := make([]claimResponsePayload, 0, len(records))
	for _, rec := range records {
		payload = append(payload, claimResponsePayload{
			ID:              rec.ID,
			PrimaryAmount:   rec.Primary.String(),
			SecondaryAmount: rec.Secondary.String(),
			AssetValue:      rec.AssetValue.String(),
			AmountPaidIn:    rec.Compounded.String(),
			ConfigVersion:   rec.ConfigVersion,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var payload pausePayload
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.pauses.SetPaused("vault", payload.Paused)
	s.logger.Info("pause switch flipped", "paused", payload.Paused)
	writeJSON(w, http.StatusOK, payload)
}

// claimInvalid reports whether the claim failed on its own inputs or
// preconditions rather than on an upstream call.
func claimInvalid(err error) bool {
	return errors.Is(err, vault.ErrNegativeAmount) ||
		errors.Is(err, vault.ErrMissingCeiling) ||
		errors.Is(err, vault.ErrZeroPrice) ||
		errors.Is(err, vault.ErrLockerRewardsUnset)
}

func claimStatus(err error) int {
	switch {
	case errors.Is(err, vault.ErrSlippage):
		return http.StatusConflict
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case claimInvalid(err):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, vault.ErrSlippage):
		return "slippage"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case claimInvalid(err):
		return "invalid"
	default:
		return "failed"
	}
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, requestLimit))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseAmount(raw string, allowZero bool) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, errors.New("invalid amount")
	}
	if value.Sign() < 0 || (!allowZero && value.Sign() == 0) {
		return nil, errors.New("amount out of range")
	}
	return value, nil
}

func addressString(addr crypto.Address) string {
	if len(addr.Bytes()) == 0 {
		return ""
	}
	return addr.String()
}

func saturatingUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}
