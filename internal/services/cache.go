package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned by durable backends when a key is absent or
// already expired.
var ErrCacheMiss = errors.New("cache miss")

// DurableCache is the persistent tier behind CacheService. Implementations
// must treat absent and expired keys the same way (ErrCacheMiss) and keep
// lazy expiry to themselves.
type DurableCache interface {
	Get(ctx context.Context, key string) (data []byte, remaining time.Duration, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Available(ctx context.Context) bool
	Name() string
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

type memoryTier struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	sets    int
}

// sweepInterval is how many writes pass between opportunistic sweeps of
// expired in-memory entries.
const sweepInterval = 256

// CacheService is a namespaced view over a two-tier TTL cache: a durable
// backend consulted first and an in-process map that keeps serving when the
// backend is down. Reads and writes never fail; tier errors are logged,
// counted and reported as misses.
type CacheService struct {
	mem        *memoryTier
	durable    DurableCache
	namespace  string
	defaultTTL time.Duration
	clock      Clock
	logger     *logrus.Entry

	statsMu sync.Mutex
	hits    int64
	misses  int64
	expired int64
}

// CacheStats describes one namespace of the cache
type CacheStats struct {
	Namespace string `json:"namespace"`
	Entries   int    `json:"entries"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Expired   int64  `json:"expired"`
	Backend   string `json:"backend"`
	BackendUp bool   `json:"backend_up"`
}

// NewCacheService creates the root cache view. durable may be nil for a
// memory-only cache.
func NewCacheService(durable DurableCache, namespace string, defaultTTL time.Duration, logger *logrus.Logger) *CacheService {
	return &CacheService{
		mem:        &memoryTier{entries: make(map[string]memoryEntry)},
		durable:    durable,
		namespace:  namespace,
		defaultTTL: defaultTTL,
		clock:      SystemClock(),
		logger:     logger.WithField("component", "cache"),
	}
}

// WithClock replaces the clock. Test hook.
func (s *CacheService) WithClock(clock Clock) *CacheService {
	s.clock = clock
	return s
}

// Scoped derives a view with its own namespace and counters over the same
// two tiers. Service instances each get a scoped view so their keyspaces
// stay isolated while the tiers themselves are shared.
func (s *CacheService) Scoped(namespace string) *CacheService {
	return &CacheService{
		mem:        s.mem,
		durable:    s.durable,
		namespace:  joinNamespace(s.namespace, namespace),
		defaultTTL: s.defaultTTL,
		clock:      s.clock,
		logger:     s.logger.WithField("namespace", namespace),
	}
}

// Namespace returns the full key prefix of this view.
func (s *CacheService) Namespace() string { return s.namespace }

func joinNamespace(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, ":")
}

func (s *CacheService) fullKey(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

// Get loads a cached value into dest. It reports false on any miss,
// expired entry or tier failure; it never returns an error to the caller.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	data, ok := s.getBytes(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cached payload failed to unmarshal, dropping entry")
		s.Delete(ctx, key)
		return false
	}
	return true
}

// getBytes returns the raw cached payload. The durable tier is consulted
// first; a durable hit backfills the memory tier with the remaining TTL so
// reads keep working through a backend outage.
func (s *CacheService) getBytes(ctx context.Context, key string) ([]byte, bool) {
	full := s.fullKey(key)
	now := s.clock.Now()

	if s.durable != nil {
		data, remaining, err := s.durable.Get(ctx, full)
		switch {
		case err == nil:
			s.mem.put(full, data, now.Add(remaining), now)
			s.countHit(s.durable.Name())
			return data, true
		case errors.Is(err, ErrCacheMiss):
			// fall through to the memory tier
		default:
			cacheErrors.WithLabelValues(s.durable.Name(), "get").Inc()
			s.logger.WithError(err).WithField("key", key).Warn("Durable cache read failed, trying memory tier")
		}
	}

	data, ok, wasExpired := s.mem.get(full, now)
	if wasExpired {
		s.countExpired()
	}
	if !ok {
		s.countMiss()
		return nil, false
	}
	s.countHit("memory")
	return data, true
}

// Set stores a value in both tiers. Marshal failures and tier errors are
// logged, never returned; a zero or negative TTL uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to marshal value for cache")
		return
	}
	s.setBytes(ctx, key, data, ttl)
}

func (s *CacheService) setBytes(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	full := s.fullKey(key)
	now := s.clock.Now()

	s.mem.put(full, data, now.Add(ttl), now)

	if s.durable != nil {
		if err := s.durable.Set(ctx, full, data, ttl); err != nil {
			cacheErrors.WithLabelValues(s.durable.Name(), "set").Inc()
			s.logger.WithError(err).WithField("key", key).Warn("Durable cache write failed, entry kept in memory only")
		}
	}
}

// Delete removes a key from both tiers.
func (s *CacheService) Delete(ctx context.Context, key string) {
	full := s.fullKey(key)
	s.mem.delete(full)
	if s.durable != nil {
		if err := s.durable.Delete(ctx, full); err != nil {
			cacheErrors.WithLabelValues(s.durable.Name(), "delete").Inc()
			s.logger.WithError(err).WithField("key", key).Warn("Durable cache delete failed")
		}
	}
}

// Clear wipes this namespace from both tiers. Other namespaces sharing the
// tiers are untouched.
func (s *CacheService) Clear(ctx context.Context) {
	prefix := s.namespace
	s.mem.deletePrefix(prefix)
	if s.durable != nil {
		if err := s.durable.DeletePrefix(ctx, prefix); err != nil {
			cacheErrors.WithLabelValues(s.durable.Name(), "clear").Inc()
			s.logger.WithError(err).WithField("namespace", prefix).Warn("Durable cache clear failed")
		}
	}
	s.logger.WithField("namespace", prefix).Info("Cache namespace cleared")
}

// Stats reports counters for this namespace plus backend availability.
func (s *CacheService) Stats(ctx context.Context) CacheStats {
	stats := CacheStats{
		Namespace: s.namespace,
		Entries:   s.mem.countPrefix(s.namespace, s.clock.Now()),
		Backend:   "memory",
		BackendUp: true,
	}
	s.statsMu.Lock()
	stats.Hits = s.hits
	stats.Misses = s.misses
	stats.Expired = s.expired
	s.statsMu.Unlock()

	if s.durable != nil {
		stats.Backend = s.durable.Name()
		stats.BackendUp = s.durable.Available(ctx)
	}
	return stats
}

func (s *CacheService) countHit(tier string) {
	cacheHits.WithLabelValues(tier).Inc()
	s.statsMu.Lock()
	s.hits++
	s.statsMu.Unlock()
}

func (s *CacheService) countMiss() {
	cacheMisses.Inc()
	s.statsMu.Lock()
	s.misses++
	s.statsMu.Unlock()
}

func (s *CacheService) countExpired() {
	s.statsMu.Lock()
	s.expired++
	s.statsMu.Unlock()
}

func (m *memoryTier) get(key string, now time.Time) (data []byte, ok bool, wasExpired bool) {
	m.mu.RLock()
	entry, found := m.entries[key]
	m.mu.RUnlock()
	if !found {
		return nil, false, false
	}
	if !now.Before(entry.expiresAt) {
		m.mu.Lock()
		// re-check under the write lock, a Set may have refreshed it
		if current, still := m.entries[key]; still && !now.Before(current.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, true
	}
	return entry.data, true, false
}

func (m *memoryTier) put(key string, data []byte, expiresAt, now time.Time) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: expiresAt}
	m.sets++
	if m.sets%sweepInterval == 0 {
		m.sweepLocked(now)
	}
	m.mu.Unlock()
}

func (m *memoryTier) delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *memoryTier) deletePrefix(prefix string) {
	m.mu.Lock()
	for key := range m.entries {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}

func (m *memoryTier) countPrefix(prefix string, now time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			continue
		}
		if prefix == "" || strings.HasPrefix(key, prefix) {
			count++
		}
	}
	return count
}

func (m *memoryTier) sweepLocked(now time.Time) {
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}
