package core

import "time"

// Cache is a simple key-value store with per-entry TTL, used to memoize
// session resolution. Entries expire on TTL only; implementations must be
// safe for concurrent use.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, val interface{}, ttl time.Duration)
	Delete(key string)
}
