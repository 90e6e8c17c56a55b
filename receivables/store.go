/*
store.go - Persistence interfaces for fields, instances and participant data

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:    Reads and writes for all engine-owned records
  TxStore:  Wraps a Store with one-transaction-per-run semantics

TRANSACTION CONTRACT:
  Every mutating run (generate, recompute) executes inside a single WithTx
  call. If the closure returns an error - including an exception-strategy
  conflict - the transaction is rolled back and nothing is partially applied.

UNIQUENESS:
  Implementations must enforce UNIQUE(option_key) per field and
  UNIQUE(participant_id, instance_id) for data, returning
  ErrDuplicateOptionKey / ErrDuplicateDatum on violation. This is what turns
  a race between concurrent runs on the same field into an error instead of
  silent corruption.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - receivables/store/memory.go: In-memory for testing
*/
package receivables

import "context"

// =============================================================================
// STORE - Reads and writes for engine-owned records
// =============================================================================

type Store interface {
	// Projects
	CreateProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id ProjectID) (Project, error)

	// Field descriptors
	CreateField(ctx context.Context, fd FieldDescriptor) error
	GetField(ctx context.Context, id FieldID) (FieldDescriptor, error)
	ListFields(ctx context.Context, projectID ProjectID) ([]FieldDescriptor, error)

	// Receivable instances. CreateInstance is the only way instances come into
	// being; the engine never deletes them (removal is an explicit
	// administrative action elsewhere).
	CreateInstance(ctx context.Context, inst ReceivableInstance) error
	ListInstances(ctx context.Context, fieldID FieldID) ([]ReceivableInstance, error)

	// Participants
	CreateParticipant(ctx context.Context, p Participant) error
	GetParticipant(ctx context.Context, id ParticipantID) (Participant, error)
	ListParticipants(ctx context.Context, projectID ProjectID) ([]Participant, error)

	// Participant data. GetDatum returns (nil, nil) when no datum exists -
	// absence is a normal state, not an error.
	GetDatum(ctx context.Context, participantID ParticipantID, instanceID InstanceID) (*ParticipantDatum, error)
	ListData(ctx context.Context, instanceID InstanceID) ([]ParticipantDatum, error)
	CreateDatum(ctx context.Context, d ParticipantDatum) error
	UpdateDatum(ctx context.Context, d ParticipantDatum) error
	DeleteDatum(ctx context.Context, participantID ParticipantID, instanceID InstanceID) error
}

// =============================================================================
// TRANSACTIONAL STORE - One transaction per run
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
