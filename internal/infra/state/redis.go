package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"recoveryd/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix   = "recoveryd:state:"
	sessionKeyPrefix = "recoveryd:session:"
	sessionIndexKey  = "recoveryd:sessions"
	phaseKeyPrefix   = "recoveryd:phase:"
)

// Redis persists module recovery states and the phase ledger.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, id domain.ModuleID) (*domain.RecoveryState, error) {
	payload, err := r.client.Get(ctx, stateKeyPrefix+string(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st domain.RecoveryState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *Redis) Put(ctx context.Context, st domain.RecoveryState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, stateKeyPrefix+string(st.ModuleID), payload, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, id domain.ModuleID) error {
	return r.client.Del(ctx, stateKeyPrefix+string(id)).Err()
}

func (r *Redis) List(ctx context.Context) ([]domain.RecoveryState, error) {
	keys, err := r.client.Keys(ctx, stateKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	var out []domain.RecoveryState
	for _, key := range keys {
		payload, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var st domain.RecoveryState
		if err := json.Unmarshal(payload, &st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *Redis) MarkCompleted(ctx context.Context, phaseID string) error {
	return r.client.Set(ctx, phaseKeyPrefix+phaseID, "1", 0).Err()
}

func (r *Redis) Completed(ctx context.Context, phaseID string) (bool, error) {
	_, err := r.client.Get(ctx, phaseKeyPrefix+phaseID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Reset(ctx context.Context) error {
	keys, err := r.client.Keys(ctx, phaseKeyPrefix+"*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// RedisSessions persists recovery sessions with an optional TTL for
// explicit-cleanup semantics.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessions(client *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl}
}

var createSessionScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
redis.call("SADD", KEYS[2], ARGV[3])
return 1
`)

func (r *RedisSessions) Create(ctx context.Context, s domain.RecoverySession) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	created, err := createSessionScript.Run(ctx, r.client,
		[]string{sessionKeyPrefix + s.SessionID, sessionIndexKey},
		payload, r.ttl.Milliseconds(), s.SessionID).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *RedisSessions) Get(ctx context.Context, id string) (*domain.RecoverySession, error) {
	payload, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s domain.RecoverySession
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisSessions) Update(ctx context.Context, s domain.RecoverySession) error {
	if _, err := r.Get(ctx, s.SessionID); err != nil {
		return err
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKeyPrefix+s.SessionID, payload, r.ttl).Err()
}

func (r *RedisSessions) ListActive(ctx context.Context) ([]domain.RecoverySession, error) {
	ids, err := r.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, err
	}
	var out []domain.RecoverySession
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			// expired; drop the stale index entry
			_ = r.client.SRem(ctx, sessionIndexKey, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		if !s.Status.Terminal() {
			out = append(out, *s)
		}
	}
	return out, nil
}
