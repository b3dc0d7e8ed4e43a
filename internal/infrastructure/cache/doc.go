// Package cache provides the Redis read cache used by the student
// registry.
//
// Records are stored as JSON under "student:{student_id}" with a fixed
// TTL. The registry reads through the cache on Get and deletes the key
// after every successful mutation, so a stale entry lives at most one TTL
// when a read races a write.
//
// Cache failures never fail a registry operation; the service logs them
// and falls back to the store.
package cache
