// Package cache implements a three-tier cache (in-process LRU, embedded
// disk store, distributed Redis) with cascading backfill on read,
// fan-out on write, and compression above a size threshold.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/s2"
	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"

	"github.com/harborgrid-justin/cadcore/common"
	cn "github.com/harborgrid-justin/cadcore/common/constant"
	"github.com/harborgrid-justin/cadcore/common/mredis"
)

// Config mirrors the three-tier knobs: per-tier enablement, capacity,
// and TTL, plus the compression threshold shared by all tiers.
type Config struct {
	EnableL1 bool
	L1Capacity int
	L1TTL      time.Duration

	EnableL2     bool
	L2BucketName string
	L2TTL        time.Duration

	EnableL3 bool
	L3TTL    time.Duration

	CompressionThreshold int
}

// DefaultConfig matches the defaults used by the original cache design.
func DefaultConfig() Config {
	return Config{
		EnableL1:             true,
		L1Capacity:           10000,
		L1TTL:                5 * time.Minute,
		EnableL2:             true,
		L2BucketName:         "cache",
		L2TTL:                time.Hour,
		EnableL3:             false,
		L3TTL:                30 * time.Minute,
		CompressionThreshold: 1024,
	}
}

// Layer identifies which tier served (or should serve) an entry.
type Layer int

const (
	LayerL1 Layer = iota
	LayerL2
	LayerL3
)

func (l Layer) String() string {
	switch l {
	case LayerL1:
		return "L1"
	case LayerL2:
		return "L2"
	case LayerL3:
		return "L3"
	default:
		return "unknown"
	}
}

// entry is the envelope stored in every tier: raw or s2-compressed bytes
// plus enough metadata to check expiry without touching the payload.
type entry struct {
	Value      json.RawMessage `json:"value"`
	CreatedAt  int64           `json:"created_at"`
	TTLSeconds int64           `json:"ttl_seconds"`
	Compressed bool            `json:"compressed"`
}

func (e entry) isExpired(now time.Time) bool {
	if e.TTLSeconds <= 0 {
		return false
	}

	return now.Unix() > e.CreatedAt+e.TTLSeconds
}

// Stats is a snapshot of per-tier and rolling cache counters.
type Stats struct {
	L1Hits, L1Misses, L1Evictions uint64
	L2Hits, L2Misses              uint64
	L3Hits, L3Misses              uint64
	TotalHits, TotalMisses        uint64
	HitRate                       float64
	AvgGetTimeMicros              uint64
	AvgSetTimeMicros              uint64
}

func (s *Stats) recalcHitRate() {
	total := s.TotalHits + s.TotalMisses
	if total > 0 {
		s.HitRate = float64(s.TotalHits) / float64(total)
	}
}

// Manager fronts up to three cache tiers behind a single Get/Set/Delete
// API. Any tier may be nil, in which case it's skipped entirely.
type Manager struct {
	cfg Config

	l1 *lru.Cache[string, entry]
	l2 *bolt.DB
	l3 *mredis.RedisConnection

	mu    sync.Mutex
	stats Stats
}

// New builds a manager from cfg. l2Path is the bbolt database file path
// (ignored if EnableL2 is false). l3 backs the L3 tier whenever it is
// non-nil; when it is nil the L3 tier is skipped. EnableL3 is not
// consulted here.
func New(cfg Config, l2Path string, l3 *mredis.RedisConnection) (*Manager, error) {
	m := &Manager{cfg: cfg, l3: l3}

	if cfg.EnableL1 {
		l1, err := lru.New[string, entry](cfg.L1Capacity)
		if err != nil {
			return nil, fmt.Errorf("constructing L1 cache: %w", err)
		}

		m.l1 = l1
	}

	if cfg.EnableL2 {
		db, err := bolt.Open(l2Path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("opening L2 cache file %s: %w", l2Path, err)
		}

		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists([]byte(cfg.L2BucketName))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("creating L2 bucket: %w", err)
		}

		m.l2 = db
	}

	return m, nil
}

// Get looks up key, cascading L1 -> L2 -> L3, promoting the entry into
// every faster tier it skipped on a hit, and unmarshalling into dest.
func (m *Manager) Get(ctx context.Context, key string, dest any) (bool, error) {
	logger := common.NewLoggerFromContext(ctx)
	tracer := common.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "cache.get")
	defer span.End()

	start := time.Now()
	now := time.Now()

	if m.l1 != nil {
		if e, ok := m.l1.Get(key); ok {
			if !e.isExpired(now) {
				if err := m.decodeInto(e, dest); err != nil {
					return false, err
				}

				m.recordHit(LayerL1, time.Since(start))

				return true, nil
			}

			m.l1.Remove(key)
		}

		m.recordMiss(LayerL1)
	}

	if m.l2 != nil {
		e, found, err := m.getL2(key)
		if err != nil {
			return false, err
		}

		if found {
			if !e.isExpired(now) {
				m.promote(key, e, LayerL1)

				if err := m.decodeInto(e, dest); err != nil {
					return false, err
				}

				m.recordHit(LayerL2, time.Since(start))

				return true, nil
			}

			_ = m.deleteL2(key)
		}

		m.recordMiss(LayerL2)
	}

	if m.l3 != nil {
		e, found, err := m.getL3(ctx, key)
		if err != nil {
			logger.Errorf("cache L3 get failed for key %s: %v", key, err)
			return false, fmt.Errorf("%w: %v", cn.ErrTierUnavailable, err)
		}

		if found {
			if !e.isExpired(now) {
				m.promote(key, e, LayerL1, LayerL2)

				if err := m.decodeInto(e, dest); err != nil {
					return false, err
				}

				m.recordHit(LayerL3, time.Since(start))

				return true, nil
			}
		}

		m.recordMiss(LayerL3)
	}

	m.mu.Lock()
	m.stats.TotalMisses++
	m.stats.recalcHitRate()
	m.mu.Unlock()

	return false, nil
}

// Set writes value to every enabled tier, compressing the serialized
// payload with s2 once it exceeds CompressionThreshold.
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	tracer := common.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "cache.set")
	defer span.End()

	start := time.Now()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", cn.ErrSerializationFailed, err)
	}

	ttlSeconds := int64(0)
	if ttl > 0 {
		ttlSeconds = int64(ttl.Seconds())
	} else if m.cfg.L1TTL > 0 {
		ttlSeconds = int64(m.cfg.L1TTL.Seconds())
	}

	e := entry{
		Value:      raw,
		CreatedAt:  time.Now().Unix(),
		TTLSeconds: ttlSeconds,
	}

	if len(raw) > m.cfg.CompressionThreshold {
		e.Value = s2.Encode(nil, raw)
		e.Compressed = true
	}

	if m.l1 != nil {
		m.l1.Add(key, e)
	}

	if m.l2 != nil {
		if err := m.setL2(key, e); err != nil {
			return err
		}
	}

	if m.l3 != nil {
		if err := m.setL3(ctx, key, e, ttl); err != nil {
			return fmt.Errorf("%w: %v", cn.ErrTierUnavailable, err)
		}
	}

	m.mu.Lock()
	elapsedMicros := uint64(time.Since(start).Microseconds())
	if m.stats.AvgSetTimeMicros == 0 {
		m.stats.AvgSetTimeMicros = elapsedMicros
	} else {
		m.stats.AvgSetTimeMicros = (m.stats.AvgSetTimeMicros + elapsedMicros) / 2
	}
	m.mu.Unlock()

	return nil
}

// Delete removes key from every enabled tier.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if m.l1 != nil {
		m.l1.Remove(key)
	}

	if m.l2 != nil {
		if err := m.deleteL2(key); err != nil {
			return err
		}
	}

	if m.l3 != nil {
		if err := m.deleteL3(ctx, key); err != nil {
			return fmt.Errorf("%w: %v", cn.ErrTierUnavailable, err)
		}
	}

	return nil
}

// Stats returns a snapshot of the current counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stats
}

func (m *Manager) promote(key string, e entry, targets ...Layer) {
	for _, t := range targets {
		switch t {
		case LayerL1:
			if m.l1 != nil {
				m.l1.Add(key, e)
			}
		case LayerL2:
			if m.l2 != nil {
				_ = m.setL2(key, e)
			}
		}
	}
}

func (m *Manager) decodeInto(e entry, dest any) error {
	payload := []byte(e.Value)

	if e.Compressed {
		decoded, err := s2.Decode(nil, payload)
		if err != nil {
			return fmt.Errorf("%w: decompressing cache entry: %v", cn.ErrSerializationFailed, err)
		}

		payload = decoded
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("%w: %v", cn.ErrSerializationFailed, err)
	}

	return nil
}

func (m *Manager) recordHit(layer Layer, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch layer {
	case LayerL1:
		m.stats.L1Hits++
	case LayerL2:
		m.stats.L2Hits++
	case LayerL3:
		m.stats.L3Hits++
	}

	m.stats.TotalHits++

	micros := uint64(elapsed.Microseconds())
	if m.stats.AvgGetTimeMicros == 0 {
		m.stats.AvgGetTimeMicros = micros
	} else {
		m.stats.AvgGetTimeMicros = (m.stats.AvgGetTimeMicros + micros) / 2
	}

	m.stats.recalcHitRate()
}

func (m *Manager) recordMiss(layer Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch layer {
	case LayerL1:
		m.stats.L1Misses++
	case LayerL2:
		m.stats.L2Misses++
	case LayerL3:
		m.stats.L3Misses++
	}
}

func (m *Manager) getL2(key string) (entry, bool, error) {
	var e entry
	found := false

	err := m.l2.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(m.cfg.L2BucketName))
		data := b.Get([]byte(key))

		if data == nil {
			return nil
		}

		found = true

		return json.Unmarshal(data, &e)
	})
	if err != nil {
		return entry{}, false, fmt.Errorf("%w: reading L2 cache: %v", cn.ErrTierUnavailable, err)
	}

	return e, found, nil
}

func (m *Manager) setL2(key string, e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %v", cn.ErrSerializationFailed, err)
	}

	err = m.l2.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(m.cfg.L2BucketName))
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: writing L2 cache: %v", cn.ErrTierUnavailable, err)
	}

	return nil
}

func (m *Manager) deleteL2(key string) error {
	err := m.l2.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(m.cfg.L2BucketName))
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: deleting from L2 cache: %v", cn.ErrTierUnavailable, err)
	}

	return nil
}

func (m *Manager) getL3(ctx context.Context, key string) (entry, bool, error) {
	client, err := m.l3.GetDB(ctx)
	if err != nil {
		return entry{}, false, err
	}

	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entry{}, false, nil
		}

		return entry{}, false, err
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return entry{}, false, err
	}

	return e, true, nil
}

func (m *Manager) setL3(ctx context.Context, key string, e entry, ttl time.Duration) error {
	client, err := m.l3.GetDB(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %v", cn.ErrSerializationFailed, err)
	}

	effectiveTTL := ttl
	if effectiveTTL <= 0 {
		effectiveTTL = m.cfg.L3TTL
	}

	return client.Set(ctx, key, data, effectiveTTL).Err()
}

func (m *Manager) deleteL3(ctx context.Context, key string) error {
	client, err := m.l3.GetDB(ctx)
	if err != nil {
		return err
	}

	return client.Del(ctx, key).Err()
}

// Close releases the disk-backed tier's file handle.
func (m *Manager) Close() error {
	if m.l2 != nil {
		return m.l2.Close()
	}

	return nil
}
