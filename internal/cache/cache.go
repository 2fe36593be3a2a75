package cache

import "time"

// Cache is a keyed store whose entries expire.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	SetWithTTL(key string, data T, ttl time.Duration)
	Delete(key string)
	Size() int
}

// Clock returns the current time. Tests swap it to move past expiry.
type Clock func() time.Time
