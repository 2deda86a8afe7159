package app

import (
	"fmt"

	rewardbus "github.com/yungbote/tastequest-backend/internal/clients/redis"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

type Clients struct {
	Rewards rewardbus.RewardNotifier
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	var bus rewardbus.RewardNotifier = rewardbus.NoopNotifier{}
	if cfg.RedisAddr != "" {
		b, err := rewardbus.NewRewardBus(log, rewardbus.RewardBusConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RewardChannel,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis reward bus: %w", err)
		}
		bus = b
	} else {
		log.Info("REDIS_ADDR not set; reward notifications disabled")
	}
	return Clients{Rewards: bus}, nil
}

func (c Clients) Close() {
	if c.Rewards != nil {
		_ = c.Rewards.Close()
	}
}
