package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/welloul/CyptoTerminal/internal/store"
	"github.com/welloul/CyptoTerminal/internal/verdict"
)

// RedisClient abstracts the Redis operations used by RedisPublisher.
// In production this is satisfied by *RedisConn; in tests by a mock.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) error
	Publish(ctx context.Context, channel string, message any) error
}

// RedisConn adapts *redis.Client to RedisClient.
type RedisConn struct {
	c *redis.Client
}

// NewRedisConn creates a client for addr. It does not dial until first use.
func NewRedisConn(addr, password string, db int) *RedisConn {
	return &RedisConn{c: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (r *RedisConn) HSet(ctx context.Context, key string, values ...any) error {
	return r.c.HSet(ctx, key, values...).Err()
}

func (r *RedisConn) Publish(ctx context.Context, channel string, message any) error {
	return r.c.Publish(ctx, channel, message).Err()
}

func (r *RedisConn) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *RedisConn) Close() error {
	return r.c.Close()
}

// PublishRecorder counts successful sink writes.
type PublishRecorder interface {
	VerdictPublished(sink string)
}

// verdictFields is the deduplicated part of a verdict hash.
type verdictFields struct {
	Price     string
	Stress    string
	Momentum  string
	Bias      string
	Score     string
	Divergent string
}

// RedisPublisher mirrors the latest verdicts for each snapshot into Redis
// using the schema:
//
//	Key:    {prefix}:verdict:{symbol}
//	Fields: price, stress, momentum, bias, score, divergent, ts
//
// Unchanged verdicts are not rewritten. When a headline label changes the
// full report is published as JSON on {prefix}:verdicts.
type RedisPublisher struct {
	client RedisClient
	prefix string
	feed   <-chan store.Snapshot
	rec    PublishRecorder
	log    zerolog.Logger

	mu         sync.Mutex
	last       map[string]verdictFields // keyed by Redis key
	lastLabels map[string][3]string     // keyed by symbol
}

// NewRedisPublisher creates a publisher reading from a store subscription.
// rec may be nil.
func NewRedisPublisher(client RedisClient, prefix string, feed <-chan store.Snapshot, rec PublishRecorder, logger zerolog.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = "cyptoterm"
	}
	return &RedisPublisher{
		client:     client,
		prefix:     prefix,
		feed:       feed,
		rec:        rec,
		log:        logger.With().Str("component", "redis").Logger(),
		last:       make(map[string]verdictFields),
		lastLabels: make(map[string][3]string),
	}
}

// Channel is the pub/sub channel for label changes.
func (rp *RedisPublisher) Channel() string {
	return rp.prefix + ":verdicts"
}

// Run writes each snapshot until ctx is cancelled or the subscription is
// closed.
func (rp *RedisPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-rp.feed:
			if !ok {
				return
			}
			rp.write(ctx, snap)
		}
	}
}

func (rp *RedisPublisher) write(ctx context.Context, snap store.Snapshot) {
	if snap.State == nil || snap.State.Symbol == "" {
		return
	}
	report := verdict.Evaluate(snap.State)
	key := fmt.Sprintf("%s:verdict:%s", rp.prefix, report.Symbol)

	fields := verdictFields{
		Price:     strconv.FormatFloat(report.Price, 'f', -1, 64),
		Stress:    string(report.Stress.Level),
		Momentum:  string(report.Momentum.Verdict),
		Bias:      string(report.Positioning.Bias),
		Score:     strconv.FormatFloat(report.Positioning.Score, 'f', 4, 64),
		Divergent: strconv.FormatBool(report.Positioning.Divergent),
	}
	labels := [3]string{fields.Stress, fields.Momentum, fields.Bias}

	rp.mu.Lock()
	prev, exists := rp.last[key]
	if exists && prev == fields {
		rp.mu.Unlock()
		return
	}
	rp.last[key] = fields
	prevLabels, seen := rp.lastLabels[report.Symbol]
	rp.lastLabels[report.Symbol] = labels
	rp.mu.Unlock()

	ts := strconv.FormatInt(snap.UpdatedAt.UnixMilli(), 10)
	err := rp.client.HSet(ctx, key,
		"price", fields.Price,
		"stress", fields.Stress,
		"momentum", fields.Momentum,
		"bias", fields.Bias,
		"score", fields.Score,
		"divergent", fields.Divergent,
		"ts", ts,
	)
	if err != nil {
		rp.log.Warn().Err(err).Str("key", key).Msg("hset failed")
		rp.rollback(key, report.Symbol, prevLabels, seen)
		return
	}
	if rp.rec != nil {
		rp.rec.VerdictPublished("redis")
	}

	if seen && prevLabels == labels {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		rp.log.Error().Err(err).Msg("encode report")
		return
	}
	if err := rp.client.Publish(ctx, rp.Channel(), string(payload)); err != nil {
		rp.log.Warn().Err(err).Str("channel", rp.Channel()).Msg("publish failed")
		rp.rollback(key, report.Symbol, prevLabels, seen)
	}
}

// rollback undoes the dedupe state of a failed write so the next snapshot
// retries it. Labels revert to the last ones actually published.
func (rp *RedisPublisher) rollback(key, symbol string, prevLabels [3]string, seen bool) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	delete(rp.last, key)
	if seen {
		rp.lastLabels[symbol] = prevLabels
	} else {
		delete(rp.lastLabels, symbol)
	}
}
