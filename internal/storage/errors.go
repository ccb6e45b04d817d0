// Package storage defines the interfaces and sentinel errors of the local
// store gateway. The sqlite subpackage provides the embedded implementation.
package storage

import "errors"

// Common local storage errors
var (
	// ErrAssetNotFound indicates that no asset exists for the given uuid
	ErrAssetNotFound = errors.New("asset not found")

	// ErrChainNotFound indicates that no asset chain exists for the given uuid
	ErrChainNotFound = errors.New("asset chain not found")

	// ErrRecordNotFound indicates that no change record matched the given ids
	ErrRecordNotFound = errors.New("change record not found")

	// ErrUnknownTable indicates an operation against a table that is not synced
	ErrUnknownTable = errors.New("unknown sync table")
)
