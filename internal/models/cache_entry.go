package models

import "time"

// CacheEntry is a row of the SQL-backed cache used when Redis is disabled.
// It holds rate limit counters and stored idempotent responses. A zero
// ExpiresAt never expires.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:191"`
	Value     []byte    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index:idx_cache_entries_expiry"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
