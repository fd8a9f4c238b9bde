// Package store defines the persistence interfaces and sentinel errors for
// the correlation store. Implementations live under internal/platform.
package store
