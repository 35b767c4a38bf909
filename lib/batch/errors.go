package batch

import "errors"

var (
	// ErrContractViolation is returned when the fetch source breaks the
	// BatchFetcher contract. The operation must not be retried.
	ErrContractViolation = errors.New("batch: fetch source contract violation")

	// ErrForwardOnly is returned for backward movements on a forward-only cache.
	ErrForwardOnly = errors.New("batch: operation not supported on a forward-only cursor")
)
