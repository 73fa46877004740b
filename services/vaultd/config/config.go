package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nhbvault/crypto"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// BigAmount wraps big.Int so token amounts can be written as decimal strings.
type BigAmount struct {
	*big.Int
}

// UnmarshalYAML parses a non-negative decimal integer string.
func (b *BigAmount) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("amount must be string")
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		b.Int = big.NewInt(0)
		return nil
	}
	parsed, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("parse amount %q", raw)
	}
	if parsed.Sign() < 0 {
		return fmt.Errorf("amount %q must not be negative", raw)
	}
	b.Int = parsed
	return nil
}

// Config captures runtime configuration for vaultd.
type Config struct {
	ListenAddress string      `yaml:"listen"`
	DatabasePath  string      `yaml:"database"`
	Node          NodeConfig  `yaml:"node"`
	Vault         VaultConfig `yaml:"vault"`
	Quota         QuotaConfig `yaml:"quota"`

	// AdminTokenEnv and OperatorKeyEnv name the environment variables the
	// secrets are read from; the secrets themselves never live in the file.
	AdminTokenEnv  string `yaml:"admin_token_env"`
	OperatorKeyEnv string `yaml:"operator_key_env"`

	// OperatorKeystore optionally points at an Ethereum v3 keystore file
	// holding the operator key. When set it takes precedence over the hex
	// key env; the passphrase is read from OperatorKeystorePassEnv.
	OperatorKeystore        string `yaml:"operator_keystore"`
	OperatorKeystorePassEnv string `yaml:"operator_keystore_pass_env"`
}

// NodeConfig describes the upstream node RPC endpoint.
type NodeConfig struct {
	BaseURL     string   `yaml:"base_url"`
	BearerToken string   `yaml:"bearer_token"`
	Timeout     Duration `yaml:"timeout"`
}

// VaultConfig wires the engine: custody address, token bindings, incentive
// rates and bounds, and the emission schedule constants.
type VaultConfig struct {
	ModuleAddress  string `yaml:"module_address"`
	AssetToken     string `yaml:"asset_token"`
	PrimaryToken   string `yaml:"primary_token"`
	SecondaryToken string `yaml:"secondary_token"`
	LockerRewards  string `yaml:"locker_rewards"`

	MaxClaimerIncentiveBps uint64 `yaml:"max_claimer_incentive_bps"`
	MaxLockerIncentiveBps  uint64 `yaml:"max_locker_incentive_bps"`
	ClaimerIncentiveBps    uint64 `yaml:"claimer_incentive_bps"`
	LockerIncentiveBps     uint64 `yaml:"locker_incentive_bps"`

	Emission EmissionConfig `yaml:"emission"`
}

// EmissionConfig carries the secondary token's mint schedule constants.
type EmissionConfig struct {
	InitialMint       BigAmount `yaml:"initial_mint"`
	ReductionPerCliff BigAmount `yaml:"reduction_per_cliff"`
	MaxEmissionSupply BigAmount `yaml:"max_emission_supply"`
	TotalCliffs       uint64    `yaml:"total_cliffs"`
}

// QuotaConfig throttles claim submissions per caller address.
type QuotaConfig struct {
	MaxRequestsPerEpoch uint32 `yaml:"max_requests_per_epoch"`
	MaxAssetPerEpoch    uint64 `yaml:"max_asset_per_epoch"`
	EpochSeconds        uint32 `yaml:"epoch_seconds"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for completeness before any wiring runs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: listen address required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("config: database path required")
	}
	if strings.TrimSpace(c.Node.BaseURL) == "" {
		return fmt.Errorf("config: node base url required")
	}

	for name, value := range map[string]string{
		"module_address":  c.Vault.ModuleAddress,
		"asset_token":     c.Vault.AssetToken,
		"primary_token":   c.Vault.PrimaryToken,
		"secondary_token": c.Vault.SecondaryToken,
		"locker_rewards":  c.Vault.LockerRewards,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: vault %s required", name)
		}
		if _, err := crypto.DecodeAddress(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("config: vault %s: %w", name, err)
		}
	}

	if c.Vault.ClaimerIncentiveBps > c.Vault.MaxClaimerIncentiveBps {
		return fmt.Errorf("config: claimer incentive exceeds its maximum")
	}
	if c.Vault.LockerIncentiveBps > c.Vault.MaxLockerIncentiveBps {
		return fmt.Errorf("config: locker incentive exceeds its maximum")
	}

	emission := c.Vault.Emission
	if emission.InitialMint.Int == nil {
		return fmt.Errorf("config: emission initial_mint required")
	}
	if emission.ReductionPerCliff.Int == nil || emission.ReductionPerCliff.Sign() <= 0 {
		return fmt.Errorf("config: emission reduction_per_cliff must be positive")
	}
	if emission.MaxEmissionSupply.Int == nil || emission.MaxEmissionSupply.Sign() <= 0 {
		return fmt.Errorf("config: emission max_emission_supply must be positive")
	}
	if emission.TotalCliffs == 0 {
		return fmt.Errorf("config: emission total_cliffs must be positive")
	}
	return nil
}

// Address decodes one of the validated vault addresses.
func Address(value string) (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(value))
}
