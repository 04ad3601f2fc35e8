// Package cache provides a generic TTL cache with a size bound, used to keep
// recent responses from remote package indexes.
package cache
