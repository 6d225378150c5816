package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisStore 基于Redis的会话存储
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions Redis配置
type RedisOptions struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore 创建Redis会话存储
func NewRedisStore(opts *RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "shipdesk:session"
	}

	return &RedisStore{client: client, prefix: prefix}
}

// Ping 测试Redis连接
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭Redis连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Create 创建会话，并记录到用户的会话集合中
func (s *RedisStore) Create(ctx context.Context, userID uint, ttl time.Duration) (string, error) {
	sessionID := uuid.NewString()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sessionID), userID, ttl)
	pipe.SAdd(ctx, s.userKey(userID), sessionID)
	pipe.Expire(ctx, s.userKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}

// Get 获取会话对应的用户ID
func (s *RedisStore) Get(ctx context.Context, sessionID string) (uint, error) {
	value, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get session: %w", err)
	}

	userID, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	return uint(userID), nil
}

// Revoke 终止单个会话
func (s *RedisStore) Revoke(ctx context.Context, sessionID string) error {
	value, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey(sessionID))
	if userID, convErr := strconv.ParseUint(value, 10, 64); convErr == nil {
		pipe.SRem(ctx, s.userKey(uint(userID)), sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeUser 终止用户的全部会话
func (s *RedisStore) RevokeUser(ctx context.Context, userID uint) error {
	sessionIDs, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list user sessions: %w", err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, sid := range sessionIDs {
		keys = append(keys, s.sessionKey(sid))
	}
	keys = append(keys, s.userKey(userID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:sid:%s", s.prefix, sessionID)
}

func (s *RedisStore) userKey(userID uint) string {
	return fmt.Sprintf("%s:user:%d", s.prefix, userID)
}

var _ Store = (*RedisStore)(nil)
