package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"shipdesk/pkg/config"
)

// ErrSessionNotFound 会话不存在、已过期或已被终止
var ErrSessionNotFound = errors.New("session not found")

// Store 登录会话存储。RequireLogin 每次请求都会校验会话是否仍然存在，
// 终止会话即删除对应记录。
type Store interface {
	Create(ctx context.Context, userID uint, ttl time.Duration) (string, error)
	Get(ctx context.Context, sessionID string) (uint, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeUser(ctx context.Context, userID uint) error
	Close() error
}

// 存储类型
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// NewStore 根据配置创建会话存储
func NewStore(cfg *config.Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Session.Store)) {
	case "", StoreRedis:
		return NewRedisStore(&RedisOptions{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Session.Prefix,
		}), nil
	case StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.New("unsupported session store: " + cfg.Session.Store)
	}
}
