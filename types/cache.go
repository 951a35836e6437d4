package types

import (
	"time"
)

// CacheManager is a bounded key/value store with write-time TTL.
// A miss is a normal outcome; Set never reports an error to the caller.
type CacheManager interface {
	LifecycleManager
	Name() string
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Len() int
	Sweep() int
}

type CacheManagerCreator func(name string, config *CacheConfig, logger Logger) (CacheManager, error)

type CacheStats struct {
	Name     string        `json:"name"`
	Backend  string        `json:"backend"`
	Items    int           `json:"items"`
	MaxItems int           `json:"max_items"`
	TTL      time.Duration `json:"ttl"`
}
