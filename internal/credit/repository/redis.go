package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
)

const (
	redisBalancePrefix = "credits:balance:"
	redisGrantPrefix   = "credits:grant:"
)

// KEYS[1] grant marker, KEYS[2] balance; ARGV[1] amount, ARGV[2] grant
// payload, ARGV[3] max balance. Returns {1 applied | 0 duplicate | -1 overflow, balance}.
// The marker is only written once the increment is known to fit.
var applyGrantScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[2]) or "0")
if redis.call("EXISTS", KEYS[1]) == 1 then
	return {0, current}
end
local amount = tonumber(ARGV[1])
if current > tonumber(ARGV[3]) - amount then
	return {-1, current}
end
redis.call("SET", KEYS[1], ARGV[2])
return {1, redis.call("INCRBY", KEYS[2], amount)}
`)

// KEYS[1] balance; ARGV[1] amount, ARGV[2] max balance. Returns {ok, balance}.
var incrementScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if current > tonumber(ARGV[2]) - amount then
	return {0, current}
end
return {1, redis.call("INCRBY", KEYS[1], amount)}
`)

// KEYS[1] balance; ARGV[1] amount. Returns {ok, balance}.
var consumeScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if current < amount then
	return {0, current}
end
return {1, redis.call("DECRBY", KEYS[1], amount)}
`)

type redisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) creditdomain.Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, userID string) (int64, error) {
	if err := checkUser(userID); err != nil {
		return 0, err
	}
	balance, err := s.client.Get(ctx, redisBalancePrefix+userID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return balance, err
}

func (s *redisStore) Set(ctx context.Context, userID string, balance int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := checkBalance(balance); err != nil {
		return err
	}
	return s.client.Set(ctx, redisBalancePrefix+userID, balance, 0).Err()
}

func (s *redisStore) Increment(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := checkAmount(userID, amount); err != nil {
		return 0, err
	}
	res, err := incrementScript.Run(ctx, s.client, []string{redisBalancePrefix + userID}, amount, creditdomain.MaxBalance).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("increment credits: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("increment credits: unexpected reply %v", res)
	}
	if res[0] == 0 {
		return res[1], creditdomain.ErrBalanceOverflow
	}
	return res[1], nil
}

func (s *redisStore) ApplyGrant(ctx context.Context, grant creditdomain.Grant) (int64, bool, error) {
	if err := checkGrant(grant); err != nil {
		return 0, false, err
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(grant)
	if err != nil {
		return 0, false, err
	}

	keys := []string{redisGrantPrefix + grant.TransactionID, redisBalancePrefix + grant.UserID}
	res, err := applyGrantScript.Run(ctx, s.client, keys, grant.Amount, string(payload), creditdomain.MaxBalance).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("apply grant: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("apply grant: unexpected reply %v", res)
	}
	if res[0] == -1 {
		return res[1], false, creditdomain.ErrBalanceOverflow
	}
	return res[1], res[0] == 1, nil
}

func (s *redisStore) Consume(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := checkAmount(userID, amount); err != nil {
		return 0, err
	}
	res, err := consumeScript.Run(ctx, s.client, []string{redisBalancePrefix + userID}, amount).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("consume credits: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("consume credits: unexpected reply %v", res)
	}
	if res[0] == 0 {
		return res[1], creditdomain.ErrInsufficientCredits
	}
	return res[1], nil
}
