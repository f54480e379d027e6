package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/slotbooking/config"
	"github.com/Domenick1991/slotbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client      *redis.Client
	bookingsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		time.Duration(cfg.BookingsTTLSeconds)*time.Second,
	)
}

func NewRedisCacheWithClient(client *redis.Client, bookingsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, bookingsTTL: bookingsTTL}
}

// GetUserBookings returns the cached list together with the generation it was read
// at. On a miss the list is nil and the generation must be handed back to
// SetUserBookings, which refuses to store once an invalidation has moved it on.
func (c *RedisCache) GetUserBookings(ctx context.Context, userID int64) ([]domain.Booking, int64, error) {
	values, err := c.client.MGet(ctx, userBookingsKey(userID), userBookingsGenKey(userID)).Result()
	if err != nil {
		return nil, 0, err
	}

	generation, err := parseGeneration(values[1])
	if err != nil {
		return nil, 0, err
	}
	data, ok := values[0].(string)
	if !ok {
		return nil, generation, nil
	}

	var bookings []domain.Booking
	if err := json.Unmarshal([]byte(data), &bookings); err != nil {
		return nil, 0, err
	}
	return bookings, generation, nil
}

// SetUserBookings stores bookings loaded at generation. The write is dropped when the
// user's bookings were invalidated in the meantime.
func (c *RedisCache) SetUserBookings(ctx context.Context, userID, generation int64, bookings []domain.Booking) error {
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	payload, err := json.Marshal(bookings)
	if err != nil {
		return err
	}

	genKey := userBookingsGenKey(userID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userBookingsKey(userID), payload, c.bookingsTTL)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// InvalidateUserBookings drops the cached list and bumps the generation so that
// readers which loaded before the change cannot store their stale copy.
func (c *RedisCache) InvalidateUserBookings(ctx context.Context, userID int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, userBookingsGenKey(userID))
		pipe.Del(ctx, userBookingsKey(userID))
		return nil
	})
	return err
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func parseGeneration(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		generation, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse bookings generation %q: %w", v, err)
		}
		return generation, nil
	default:
		return 0, fmt.Errorf("unexpected bookings generation type %T", value)
	}
}

// Both keys of a user share a hash tag so they land in the same cluster slot.
func userBookingsKey(userID int64) string {
	return fmt.Sprintf("cache:user:{%d}:bookings", userID)
}

func userBookingsGenKey(userID int64) string {
	return fmt.Sprintf("cache:user:{%d}:bookings:gen", userID)
}
