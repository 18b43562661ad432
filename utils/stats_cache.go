package utils

import (
	"encoding/json"

	"github.com/nci/gomemcache/memcache"
	log "github.com/sirupsen/logrus"

	"github.com/11904212/pcc-demo-api/processor"
)

// memcacheClient is the part of the memcache client the statistics
// cache needs.
type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

// StatsCache keeps NDVI statistics in memcached as JSON. Cache errors
// are logged and otherwise treated as misses.
type StatsCache struct {
	mc  memcacheClient
	ttl int32
	log *log.Entry
}

// NewStatsCache connects lazily to servers; ttl is in seconds, 0 keeps
// entries until evicted.
func NewStatsCache(ttl int32, servers ...string) *StatsCache {
	return &StatsCache{
		mc:  memcache.New(servers...),
		ttl: ttl,
		log: log.WithField("component", "stats_cache"),
	}
}

func (c *StatsCache) Get(key string) (processor.NdviStats, bool) {
	it, err := c.mc.Get(key)
	if err != nil {
		if err != memcache.ErrCacheMiss {
			c.log.Debugf("get %s: %v", key, err)
		}
		return processor.NdviStats{}, false
	}
	var st processor.NdviStats
	if err := json.Unmarshal(it.Value, &st); err != nil {
		c.log.Warnf("corrupt entry %s: %v", key, err)
		return processor.NdviStats{}, false
	}
	return st, true
}

func (c *StatsCache) Set(key string, st processor.NdviStats) {
	value, err := json.Marshal(st)
	if err != nil {
		c.log.Warnf("encode %s: %v", key, err)
		return
	}
	if err := c.mc.Set(&memcache.Item{Key: key, Value: value, Expiration: c.ttl}); err != nil {
		c.log.Debugf("set %s: %v", key, err)
	}
}
