// Package redis implements the Redis-backed votee store.
//
// Every vote transition is a single Lua script: membership precondition, set
// mutation, counter increments and the voter reverse index change together or
// not at all. Assumes a single Redis node; the reverse-index keys span hash slots.
package redis
