// Package storage is the optional durable backend for the dispatch dedup
// cache. When disabled, dedup state is memory-only and resets on restart.
package storage
