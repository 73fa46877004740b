package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"nhbvault/crypto"
	nativecommon "nhbvault/native/common"
	"nhbvault/native/vault"
	"nhbvault/observability/logging"
	"nhbvault/services/vaultd/chain"
	"nhbvault/services/vaultd/config"
	"nhbvault/services/vaultd/server"
	"nhbvault/services/vaultd/storage"
)

const (
	defaultAdminTokenEnv   = "VAULTD_ADMIN_TOKEN"
	defaultOperatorKeyEnv  = "VAULTD_OPERATOR_KEY"
	defaultKeystorePassEnv = "VAULTD_KEYSTORE_PASSPHRASE"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/vaultd/config.yaml", "path to vaultd configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NHB_ENV"))
	logger := logging.Setup("vaultd", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("vaultd: load config: %v", err)
	}

	adminTokenEnv := strings.TrimSpace(cfg.AdminTokenEnv)
	if adminTokenEnv == "" {
		adminTokenEnv = defaultAdminTokenEnv
	}
	auth, err := server.NewAuthenticator(os.Getenv(adminTokenEnv))
	if err != nil {
		log.Fatalf("vaultd: admin auth: %v", err)
	}

	operatorKey, err := loadOperatorKey(cfg, logger)
	if err != nil {
		log.Fatalf("vaultd: operator key: %v", err)
	}

	client, err := chain.NewClient(chain.Config{
		BaseURL:     cfg.Node.BaseURL,
		BearerToken: cfg.Node.BearerToken,
		Timeout:     cfg.Node.Timeout.Duration,
	}, operatorKey)
	if err != nil {
		log.Fatalf("vaultd: chain client: %v", err)
	}

	engine, pauses, err := buildEngine(cfg, client, logger)
	if err != nil {
		log.Fatalf("vaultd: wire engine: %v", err)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("vaultd: open storage: %v", err)
	}
	defer store.Close()

	srv := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		Quota: nativecommon.Quota{
			MaxRequestsPerEpoch: cfg.Quota.MaxRequestsPerEpoch,
			MaxAssetPerEpoch:    cfg.Quota.MaxAssetPerEpoch,
			EpochSeconds:        cfg.Quota.EpochSeconds,
		},
	}, engine, store, auth, pauses, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("vaultd listening", "address", cfg.ListenAddress)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("vaultd: serve: %v", err)
	}
}

// loadOperatorKey resolves the node signing key: a keystore file when
// configured, otherwise the hex key env. A nil key downgrades the client to
// unsigned calls.
func loadOperatorKey(cfg *config.Config, logger *slog.Logger) (*crypto.PrivateKey, error) {
	if path := strings.TrimSpace(cfg.OperatorKeystore); path != "" {
		passEnv := strings.TrimSpace(cfg.OperatorKeystorePassEnv)
		if passEnv == "" {
			passEnv = defaultKeystorePassEnv
		}
		key, err := crypto.LoadFromKeystore(path, os.Getenv(passEnv))
		if err != nil {
			return nil, err
		}
		logger.Info("operator key loaded from keystore", "keystore", path)
		return key, nil
	}

	operatorKeyEnv := strings.TrimSpace(cfg.OperatorKeyEnv)
	if operatorKeyEnv == "" {
		operatorKeyEnv = defaultOperatorKeyEnv
	}
	if raw := strings.TrimSpace(os.Getenv(operatorKeyEnv)); raw != "" {
		key, err := crypto.PrivateKeyFromHex(raw)
		if err != nil {
			return nil, err
		}
		logger.Info("operator key loaded", logging.MaskField(operatorKeyEnv, raw))
		return key, nil
	}
	logger.Warn("operator key not configured; mutating node calls will be unsigned")
	return nil, nil
}

func buildEngine(cfg *config.Config, client *chain.Client, logger *slog.Logger) (*vault.Engine, *server.PauseRegistry, error) {
	moduleAddr, err := config.Address(cfg.Vault.ModuleAddress)
	if err != nil {
		return nil, nil, err
	}
	assetAddr, err := config.Address(cfg.Vault.AssetToken)
	if err != nil {
		return nil, nil, err
	}
	primaryAddr, err := config.Address(cfg.Vault.PrimaryToken)
	if err != nil {
		return nil, nil, err
	}
	secondaryAddr, err := config.Address(cfg.Vault.SecondaryToken)
	if err != nil {
		return nil, nil, err
	}
	lockerAddr, err := config.Address(cfg.Vault.LockerRewards)
	if err != nil {
		return nil, nil, err
	}

	engine := vault.NewEngine(moduleAddr, vault.Bounds{
		MaxClaimerIncentiveBps: cfg.Vault.MaxClaimerIncentiveBps,
		MaxLockerIncentiveBps:  cfg.Vault.MaxLockerIncentiveBps,
	})
	engine.SetRewardPool(chain.NewPool(client))
	engine.SetOracle(chain.NewOracle(client))
	engine.SetTokens(
		chain.NewToken(client, assetAddr, moduleAddr),
		chain.NewToken(client, primaryAddr, moduleAddr),
		chain.NewToken(client, secondaryAddr, moduleAddr),
	)
	engine.SetEmissionSchedule(&vault.EmissionSchedule{
		InitialMint:       cfg.Vault.Emission.InitialMint.Int,
		ReductionPerCliff: cfg.Vault.Emission.ReductionPerCliff.Int,
		MaxEmissionSupply: cfg.Vault.Emission.MaxEmissionSupply.Int,
		TotalCliffs:       cfg.Vault.Emission.TotalCliffs,
	})

	pauses := server.NewPauseRegistry()
	engine.SetPauses(pauses)
	engine.SetEventSink(server.NewEventLogger(logger))

	if err := engine.SetConfig(vault.Config{
		ClaimerIncentiveBps: cfg.Vault.ClaimerIncentiveBps,
		LockerIncentiveBps:  cfg.Vault.LockerIncentiveBps,
		LockerRewards:       lockerAddr,
	}); err != nil {
		return nil, nil, err
	}
	return engine, pauses, nil
}
