package export

import (
	"context"
	"fmt"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

// CheckpointBackend is the part of store.Backend the checkpoint store uses.
type CheckpointBackend interface {
	MaxIDSource
	LastCheckpoint(ctx context.Context, system string) (*models.LogFileCheckpoint, error)
	InsertCheckpoint(ctx context.Context, cp models.LogFileCheckpoint) error
}

// CheckpointStore records how far each system has been exported.
// Checkpoints are appended, never updated.
type CheckpointStore struct {
	backend CheckpointBackend
	ids     *IDAllocator
}

// NewCheckpointStore returns a store allocating ids with ids.
func NewCheckpointStore(backend CheckpointBackend, ids *IDAllocator) *CheckpointStore {
	return &CheckpointStore{backend: backend, ids: ids}
}

// LastPosition returns the position of the newest checkpoint, or nil if the
// system was never checkpointed.
func (s *CheckpointStore) LastPosition(ctx context.Context, system string) (*models.Position, error) {
	cp, err := s.backend.LastCheckpoint(ctx, system)
	if err != nil {
		return nil, fmt.Errorf("failed to read last checkpoint for %q: %w", system, err)
	}
	if cp == nil {
		return nil, nil
	}

	pos := cp.Position()
	pos.CurrentFileReferences = DecodePath(pos.CurrentFileReferences)
	pos.CurrentFileData = DecodePath(pos.CurrentFileData)
	return &pos, nil
}

// SavePosition appends a checkpoint and returns its id. Call it only after
// the rows up to pos have been written; a checkpoint must never run ahead
// of stored data.
func (s *CheckpointStore) SavePosition(ctx context.Context, system string, file models.FileInfo, pos models.Position) (int64, error) {
	id, err := s.ids.Next(ctx, system)
	if err != nil {
		return 0, err
	}

	err = s.backend.InsertCheckpoint(ctx, models.LogFileCheckpoint{
		InformationSystem:         system,
		ID:                        id,
		FileName:                  file.Name,
		CreateDate:                file.CreatedAt,
		ModificationDate:          file.ModifiedAt,
		LastEventNumber:           pos.EventNumber,
		LastCurrentFileReferences: EncodePath(pos.CurrentFileReferences),
		LastCurrentFileData:       EncodePath(pos.CurrentFileData),
		LastStreamPosition:        pos.StreamPosition,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save checkpoint %d for %q: %w", id, system, err)
	}
	return id, nil
}
