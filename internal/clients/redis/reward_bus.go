package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

const RewardUnlockedType = "reward_unlocked"

// RewardEvent is published once per committed stamp that unlocked rewards.
type RewardEvent struct {
	Type        string    `json:"type"`
	GuestID     string    `json:"guest_id"`
	ZoneName    string    `json:"zone_name"`
	RewardIDs   []string  `json:"reward_ids"`
	TotalStamps int       `json:"total_stamps"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RewardNotifier fans reward unlocks out to venue staff screens.
type RewardNotifier interface {
	Publish(ctx context.Context, ev RewardEvent) error
	Subscribe(ctx context.Context, onEvent func(ev RewardEvent)) error
	Ping(ctx context.Context) error
	Close() error
}

type RewardBusConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type rewardBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

// NewRewardBus dials Redis and fails fast when it is unreachable.
func NewRewardBus(log *logger.Logger, cfg RewardBusConfig) (RewardNotifier, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRewardBusWithClient(log, rdb, cfg.Channel), nil
}

// NewRewardBusWithClient wraps an existing client; it does not ping.
func NewRewardBusWithClient(log *logger.Logger, rdb goredis.UniversalClient, channel string) RewardNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "quest.rewards"
	}
	return &rewardBus{
		log:     log.With("service", "RedisRewardBus"),
		rdb:     rdb,
		channel: channel,
	}
}

func (b *rewardBus) Publish(ctx context.Context, ev RewardEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis reward bus not initialized")
	}
	if ev.Type == "" {
		ev.Type = RewardUnlockedType
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *rewardBus) Subscribe(ctx context.Context, onEvent func(ev RewardEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis reward bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				ev, err := DecodeRewardEvent([]byte(m.Payload))
				if err != nil {
					b.log.Warn("bad redis reward payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *rewardBus) Ping(ctx context.Context) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis reward bus not initialized")
	}
	return b.rdb.Ping(ctx).Err()
}

func (b *rewardBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// Client exposes the underlying connection for health collectors.
func Client(n RewardNotifier) goredis.UniversalClient {
	if b, ok := n.(*rewardBus); ok {
		return b.rdb
	}
	return nil
}

func DecodeRewardEvent(raw []byte) (RewardEvent, error) {
	var ev RewardEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return RewardEvent{}, err
	}
	if ev.Type != RewardUnlockedType || ev.GuestID == "" {
		return RewardEvent{}, fmt.Errorf("unexpected reward event %q", ev.Type)
	}
	return ev, nil
}

// NoopNotifier is used when no Redis is configured.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, RewardEvent) error { return nil }
func (NoopNotifier) Subscribe(context.Context, func(RewardEvent)) error {
	return fmt.Errorf("reward notifications are disabled")
}
func (NoopNotifier) Ping(context.Context) error { return nil }
func (NoopNotifier) Close() error               { return nil }
