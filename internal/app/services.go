package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/tastequest-backend/internal/data/aggregates"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/proof"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/rewards"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/scan"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/zones"
	"github.com/yungbote/tastequest-backend/internal/observability"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
	"github.com/yungbote/tastequest-backend/internal/services"
)

type Services struct {
	Zones *zones.Registry
	Quest services.QuestService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	registry, err := zones.Load(cfg.QuestConfigPath)
	if err != nil {
		return Services{}, fmt.Errorf("load zones: %w", err)
	}
	registry.LogWarnings(log)
	log.Info("Zone registry loaded", "zones", registry.Count(), "thresholds", len(registry.Thresholds()))

	var devices proof.DeviceVerifier
	if cfg.DeviceProofSecret != "" {
		signer, err := proof.NewDeviceSigner([]byte(cfg.DeviceProofSecret))
		if err != nil {
			return Services{}, fmt.Errorf("init device proofs: %w", err)
		}
		devices = signer
	} else {
		log.Warn("DEVICE_PROOF_SECRET not set; device proofs cannot be verified")
	}

	var guests proof.GuestVerifier
	if cfg.GuestTokenSecret != "" {
		tokens, err := proof.NewGuestTokens([]byte(cfg.GuestTokenSecret), nil)
		if err != nil {
			return Services{}, fmt.Errorf("init guest tokens: %w", err)
		}
		guests = tokens
	}

	validator := scan.NewValidator(scan.ValidatorDeps{
		Log:      log,
		Zones:    registry,
		Devices:  devices,
		Guests:   guests,
		Policy:   cfg.ScanPolicy,
		Security: metrics,
	})

	var hooks aggregates.Hooks
	if metrics != nil {
		hooks = aggregates.NewObservabilityHooks(metrics)
	}
	stamps := aggregates.NewStampAggregate(aggregates.StampAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: hooks,
			Retry: cfg.Retry,
		},
		Progress: reposet.GuestProgress,
		Ledger:   reposet.StampLedger,
		Rewards:  rewards.NewTable(registry.Thresholds()),
		Location: cfg.VenueTimezone,
	})

	quest := services.NewQuestService(services.QuestServiceDeps{
		Log:          log,
		Zones:        registry,
		Validator:    validator,
		Stamps:       stamps,
		Progress:     reposet.GuestProgress,
		Ledger:       reposet.StampLedger,
		Devices:      devices,
		Notifier:     clients.Rewards,
		Metrics:      metrics,
		WriteTimeout: cfg.WriteTimeout,
	})
	return Services{Zones: registry, Quest: quest}, nil
}
