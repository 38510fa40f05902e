package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nana-k-osei/LAGC/inventory-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Stock and reservation changes run as Lua scripts so every conditional
// update is applied atomically by Redis, however many inventory-service
// instances share the same backend.
//
// A script touches a stock hash, a reservation hash and the expiry zset
// together, and expireScript derives reservation and stock keys from the
// prefix at run time. On Redis Cluster every key must therefore live in one
// hash slot: the prefix has to carry a hash tag such as "{inventory}:".
// NewRedisStore rejects an untagged prefix when the client targets a cluster.

var reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {-1, 0}
end
local total = tonumber(redis.call('HGET', KEYS[1], 'total') or '0')
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved') or '0')
local qty = tonumber(ARGV[1])
local available = total - reserved
if available < qty then
  return {0, available}
end
redis.call('HINCRBY', KEYS[1], 'reserved', qty)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[5])
redis.call('HSET', KEYS[2], 'product_id', ARGV[4], 'checkout_id', ARGV[3], 'quantity', qty,
  'status', 'reserved', 'created_at', ARGV[5], 'expires_at', ARGV[6])
redis.call('ZADD', KEYS[3], ARGV[6], ARGV[2])
return {1, available - qty}
`)

var commitScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[2], 'status')
if not status then return -1 end
if status == 'confirmed' then return 2 end
if status == 'expired' then return -2 end
if status == 'released' then return -3 end
local qty = tonumber(redis.call('HGET', KEYS[2], 'quantity'))
local expires = tonumber(redis.call('HGET', KEYS[2], 'expires_at'))
redis.call('ZREM', KEYS[3], ARGV[1])
if tonumber(ARGV[2]) > expires then
  redis.call('HINCRBY', KEYS[1], 'reserved', -qty)
  redis.call('HSET', KEYS[2], 'status', 'expired')
  redis.call('PEXPIRE', KEYS[2], ARGV[3])
  return -2
end
redis.call('HINCRBY', KEYS[1], 'total', -qty)
redis.call('HINCRBY', KEYS[1], 'reserved', -qty)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
redis.call('HSET', KEYS[2], 'status', 'confirmed')
redis.call('PEXPIRE', KEYS[2], ARGV[3])
return 1
`)

var releaseScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[2], 'status')
if not status then return -1 end
if status == 'released' or status == 'expired' then return 2 end
if status == 'confirmed' then return -3 end
local qty = tonumber(redis.call('HGET', KEYS[2], 'quantity'))
redis.call('HINCRBY', KEYS[1], 'reserved', -qty)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
redis.call('HSET', KEYS[2], 'status', 'released')
redis.call('PEXPIRE', KEYS[2], ARGV[3])
redis.call('ZREM', KEYS[3], ARGV[1])
return 1
`)

var setStockScript = redis.NewScript(`
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved') or '0')
if tonumber(ARGV[1]) < reserved then
  return {0, reserved}
end
redis.call('HSET', KEYS[1], 'total', ARGV[1], 'reserved', reserved, 'updated_at', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
return {1, reserved}
`)

var expireScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[4]))
local n = 0
for _, id in ipairs(ids) do
  local rkey = ARGV[2] .. id
  if redis.call('HGET', rkey, 'status') == 'reserved' then
    local qty = tonumber(redis.call('HGET', rkey, 'quantity'))
    local skey = ARGV[3] .. redis.call('HGET', rkey, 'product_id')
    redis.call('HINCRBY', skey, 'reserved', -qty)
    redis.call('HSET', skey, 'updated_at', ARGV[1])
    redis.call('HSET', rkey, 'status', 'expired')
    redis.call('PEXPIRE', rkey, ARGV[5])
    n = n + 1
  end
  redis.call('ZREM', KEYS[1], id)
end
return n
`)

const expireBatch = 500

// RedisStore implements InventoryStore on Redis hashes.
//
//	<prefix>stock:<productID>       hash total, reserved, updated_at
//	<prefix>reservation:<id>        hash product_id, checkout_id, quantity, status, created_at, expires_at;
//	                                expires SettledRetention after it is settled
//	<prefix>reservations:expiry     zset of open reservation ids scored by expiry
//	<prefix>products                set of product ids
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	opts    Options
	sweeper *sweeper
}

func NewRedisStore(client redis.UniversalClient, prefix string, opts Options) (*RedisStore, error) {
	if _, ok := client.(*redis.ClusterClient); ok && !hasHashTag(prefix) {
		return nil, fmt.Errorf("redis key prefix %q needs a hash tag on a cluster", prefix)
	}
	s := &RedisStore{client: client, prefix: prefix, opts: opts.withDefaults()}
	s.sweeper = startSweeper(s.opts.CleanupInterval, s.opts.Logger, s.ExpireReservations)
	return s, nil
}

// hasHashTag reports whether prefix pins keys to one cluster slot.
func hasHashTag(prefix string) bool {
	open := strings.IndexByte(prefix, '{')
	if open < 0 {
		return false
	}
	end := strings.IndexByte(prefix[open+1:], '}')
	return end > 0
}

func (s *RedisStore) stockKey(productID string) string { return s.prefix + "stock:" + productID }
func (s *RedisStore) reservationKey(id string) string  { return s.prefix + "reservation:" + id }
func (s *RedisStore) expiryKey() string                { return s.prefix + "reservations:expiry" }
func (s *RedisStore) productsKey() string              { return s.prefix + "products" }

func (s *RedisStore) GetStock(ctx context.Context, productIDs []string) ([]domain.StockInfo, error) {
	cmds := make([]*redis.MapStringStringCmd, len(productIDs))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range productIDs {
			cmds[i] = pipe.HGetAll(ctx, s.stockKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, transient(err)
	}

	result := make([]domain.StockInfo, 0, len(productIDs))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		result = append(result, parseStock(productIDs[i], fields))
	}
	return result, nil
}

func (s *RedisStore) GetAvailable(ctx context.Context, productID string) (int32, error) {
	fields, err := s.client.HGetAll(ctx, s.stockKey(productID)).Result()
	if err != nil {
		return 0, transient(err)
	}
	if len(fields) == 0 {
		return 0, ErrProductNotFound
	}
	return parseStock(productID, fields).Available(), nil
}

func (s *RedisStore) Reserve(ctx context.Context, checkoutID, productID string, quantity int32) (*domain.Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	now := s.opts.Now()
	reservation := &domain.Reservation{
		ID:         uuid.New().String(),
		CheckoutID: checkoutID,
		ProductID:  productID,
		Quantity:   quantity,
		Status:     domain.StatusReserved,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.opts.ReservationTTL),
	}

	res, err := reserveScript.Run(ctx, s.client,
		[]string{s.stockKey(productID), s.reservationKey(reservation.ID), s.expiryKey()},
		quantity, reservation.ID, checkoutID, productID, now.UnixMilli(), reservation.ExpiresAt.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return nil, transient(err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("reserve script returned %d values", len(res))
	}

	switch res[0] {
	case -1:
		return nil, ErrProductNotFound
	case 0:
		return nil, &InsufficientStockError{ProductID: productID, Requested: quantity, Available: int32(res[1])}
	}
	return reservation, nil
}

func (s *RedisStore) Commit(ctx context.Context, reservationID string) error {
	code, err := s.runOnReservation(ctx, commitScript, reservationID)
	if err != nil {
		return err
	}
	switch code {
	case -1:
		return ErrReservationNotFound
	case -2:
		return ErrReservationExpired
	case -3:
		return ErrInvalidStatus
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, reservationID string) error {
	code, err := s.runOnReservation(ctx, releaseScript, reservationID)
	if err != nil {
		return err
	}
	switch code {
	case -1:
		return ErrReservationNotFound
	case -3:
		return ErrInvalidStatus
	}
	return nil
}

func (s *RedisStore) runOnReservation(ctx context.Context, script *redis.Script, reservationID string) (int64, error) {
	productID, err := s.client.HGet(ctx, s.reservationKey(reservationID), "product_id").Result()
	if errors.Is(err, redis.Nil) {
		return -1, nil
	}
	if err != nil {
		return 0, transient(err)
	}

	code, err := script.Run(ctx, s.client,
		[]string{s.stockKey(productID), s.reservationKey(reservationID), s.expiryKey()},
		reservationID, s.opts.Now().UnixMilli(), s.opts.SettledRetention.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, transient(err)
	}
	return code, nil
}

func (s *RedisStore) Restock(ctx context.Context, productID string, quantity int32) (domain.StockInfo, error) {
	if quantity <= 0 {
		return domain.StockInfo{}, ErrInvalidQuantity
	}

	key := s.stockKey(productID)
	var fields *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "reserved", 0)
		pipe.HIncrBy(ctx, key, "total", int64(quantity))
		pipe.HSet(ctx, key, "updated_at", s.opts.Now().UnixMilli())
		pipe.SAdd(ctx, s.productsKey(), productID)
		fields = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return domain.StockInfo{}, transient(err)
	}
	return parseStock(productID, fields.Val()), nil
}

func (s *RedisStore) SetStock(ctx context.Context, productID string, quantity int32) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}

	res, err := setStockScript.Run(ctx, s.client,
		[]string{s.stockKey(productID), s.productsKey()},
		quantity, s.opts.Now().UnixMilli(), productID,
	).Int64Slice()
	if err != nil {
		return transient(err)
	}
	if len(res) != 2 {
		return fmt.Errorf("set stock script returned %d values", len(res))
	}
	if res[0] == 0 {
		return belowReserved(quantity, int32(res[1]))
	}
	return nil
}

func (s *RedisStore) ListStock(ctx context.Context) ([]domain.StockInfo, error) {
	ids, err := s.client.SMembers(ctx, s.productsKey()).Result()
	if err != nil {
		return nil, transient(err)
	}
	slices.Sort(ids)
	return s.GetStock(ctx, ids)
}

func (s *RedisStore) ExpireReservations(ctx context.Context) (int, error) {
	n, err := expireScript.Run(ctx, s.client,
		[]string{s.expiryKey()},
		s.opts.Now().UnixMilli(), s.prefix+"reservation:", s.prefix+"stock:", expireBatch,
		s.opts.SettledRetention.Milliseconds(),
	).Int()
	if err != nil {
		return 0, transient(err)
	}
	return n, nil
}

// Close stops the sweep. The Redis client is owned by the caller.
func (s *RedisStore) Close() error {
	s.sweeper.Stop()
	return nil
}

func parseStock(productID string, fields map[string]string) domain.StockInfo {
	total, _ := strconv.ParseInt(fields["total"], 10, 32)
	reserved, _ := strconv.ParseInt(fields["reserved"], 10, 32)
	updated, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
	return domain.StockInfo{
		ProductID:   productID,
		Total:       int32(total),
		Reserved:    int32(reserved),
		LastUpdated: time.UnixMilli(updated),
	}
}

func transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
