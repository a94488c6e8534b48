package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/tenancy-engine/internal/adapter/metrics"
	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	unitKeyPrefix   = "unit:"
	personKeyPrefix = "person:"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Directory implements domain.Directory over Redis hashes written by the
// property and people services:
//
//	unit:{id}   -> number, building_name
//	person:{id} -> display_name | first_name, last_name
//
// Lookups are cached in memory for ttl. Unknown ids resolve to the id itself.
type Directory struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	ttl     time.Duration
	metrics *metrics.LeaseMetrics

	mu    sync.RWMutex
	cache map[string]cacheEntry
	now   func() time.Time
}

// NewDirectory creates a Redis-backed directory. m may be nil.
func NewDirectory(client redis.UniversalClient, logger *slog.Logger, ttl time.Duration, m *metrics.LeaseMetrics) *Directory {
	return &Directory{
		client:  client,
		logger:  logger.With("component", "redis_directory"),
		ttl:     ttl,
		metrics: m,
		cache:   make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (d *Directory) Unit(ctx context.Context, unitID string) (domain.UnitInfo, error) {
	info := domain.UnitInfo{ID: unitID, Number: unitID}
	num, okNum := d.cached(unitKeyPrefix + unitID + "#number")
	bld, okBld := d.cached(unitKeyPrefix + unitID + "#building")
	if okNum && okBld {
		info.Number, info.BuildingName = num, bld
		return info, nil
	}

	fields, err := d.client.HGetAll(ctx, unitKeyPrefix+unitID).Result()
	if err != nil {
		return info, fmt.Errorf("lookup unit %s: %w", unitID, err)
	}
	if n := fields["number"]; n != "" {
		info.Number = n
	}
	info.BuildingName = fields["building_name"]
	d.store(unitKeyPrefix+unitID+"#number", info.Number)
	d.store(unitKeyPrefix+unitID+"#building", info.BuildingName)
	return info, nil
}

func (d *Directory) PersonNames(ctx context.Context, personIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(personIDs))
	var missing []string
	for _, id := range personIDs {
		if name, ok := d.cached(personKeyPrefix + id); ok {
			out[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pipe := d.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(missing))
	for i, id := range missing {
		cmds[i] = pipe.HMGet(ctx, personKeyPrefix+id, "display_name", "first_name", "last_name")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("lookup persons: %w", err)
	}
	for i, id := range missing {
		name := personName(cmds[i].Val())
		if name == "" {
			name = id
		}
		out[id] = name
		d.store(personKeyPrefix+id, name)
	}
	return out, nil
}

func personName(vals []any) string {
	str := func(i int) string {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}
	if dn := str(0); dn != "" {
		return dn
	}
	return strings.TrimSpace(str(1) + " " + str(2))
}

func (d *Directory) cached(key string) (string, bool) {
	d.mu.RLock()
	entry, found := d.cache[key]
	d.mu.RUnlock()

	if found && d.now().Before(entry.expiresAt) {
		if d.metrics != nil {
			d.metrics.DirectoryCacheHits.Inc()
		}
		return entry.value, true
	}
	if d.metrics != nil {
		d.metrics.DirectoryCacheMiss.Inc()
	}
	return "", false
}

func (d *Directory) store(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[key] = cacheEntry{value: value, expiresAt: d.now().Add(d.ttl)}
}

// StaticDirectory echoes ids back as display values. It is used when no
// Redis is configured.
type StaticDirectory struct{}

func (StaticDirectory) Unit(_ context.Context, unitID string) (domain.UnitInfo, error) {
	return domain.UnitInfo{ID: unitID, Number: unitID}, nil
}

func (StaticDirectory) PersonNames(_ context.Context, personIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(personIDs))
	for _, id := range personIDs {
		out[id] = id
	}
	return out, nil
}
