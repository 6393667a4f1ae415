package tools

import (
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/evroute/gpx2energy/pkg/monitoring"
	"github.com/evroute/gpx2energy/pkg/track"
	"github.com/evroute/gpx2energy/pkg/vehicle"
)

// Number of per-track summaries kept in memory. Commutes are small (a handful
// of files), so this mostly serves repeated analysis of the same files with
// unchanged profiles.
const statsCacheSize = 256

// statsCache memoizes per-track summaries keyed by file identity and vehicle
// profile. Derivation is deterministic, so a cached summary never goes stale
// unless the file or the profile changes, both of which change the key.
type statsCache struct {
	cache *lru.Cache[string, *track.Stats]
}

func newStatsCache() *statsCache {
	cache, err := lru.New[string, *track.Stats](statsCacheSize)
	if err != nil {
		cache, _ = lru.New[string, *track.Stats](16)
	}
	return &statsCache{cache: cache}
}

// key builds a cache key from the file's path, size, modification time and
// the profile parameters.
func (c *statsCache) key(path string, profile *vehicle.Profile) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s|%d|%d|%+v", path, info.Size(), info.ModTime().UnixNano(), profile.Params), true
}

func (c *statsCache) get(key string) (*track.Stats, bool) {
	stats, ok := c.cache.Get(key)
	if ok {
		monitoring.RecordCacheHit("track_stats")
	} else {
		monitoring.RecordCacheMiss("track_stats")
	}
	return stats, ok
}

func (c *statsCache) put(key string, stats *track.Stats) {
	c.cache.Add(key, stats)
}
