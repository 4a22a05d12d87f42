package app

import (
	"github.com/google/uuid"

	"github.com/dropworks/pooldrop/service/transactions"
)

// Store is the persistent record of pool drops and their signing requests.
// UpdatePoolDrop is the sole concurrency primitive: a conditional update
// against the version the caller read. There are no locks; a caller that
// loses the race re-reads and retries.
type Store interface {
	// Insert a brand-new pool drop with version 0.
	// Fails with ErrDuplicateID if the id already exists.
	InsertPoolDrop(*PoolDrop) error

	// Get the current pool drop or ErrNotFound.
	GetPoolDrop(id string) (*PoolDrop, error)

	// Atomically apply the update only if the stored version still equals
	// expectedVersion, then set the stored version to expectedVersion+1.
	// Fails with ErrVersionConflict otherwise.
	UpdatePoolDrop(pd *PoolDrop, expectedVersion uint64) error

	// List ids of drops that are neither cancelled nor executed, filtered by
	// creator and, when non-empty, by currency.
	ListActivePoolDrops(creatorID, currency string) ([]string, error)

	// Signing request audit trail
	InsertSigningRequest(*transactions.SigningRequest) error
	UpdateSigningRequest(*transactions.SigningRequest) error
	GetSigningRequest(id uuid.UUID) (*transactions.SigningRequest, error)
	LatestSigningRequest(poolDropID string) (*transactions.SigningRequest, error)
}
