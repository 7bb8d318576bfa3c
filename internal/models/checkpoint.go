package models

import "time"

// Position describes how far the log reader has got in a system's event log.
type Position struct {
	EventNumber           int64  `json:"event_number"`
	CurrentFileReferences string `json:"current_file_references"`
	CurrentFileData       string `json:"current_file_data"`
	StreamPosition        int64  `json:"stream_position"`
}

// FileInfo is the metadata of the log file a position belongs to.
type FileInfo struct {
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// LogFileCheckpoint is one row of the append-only LogFiles table.
// For a system, the checkpoint with the largest ID is the resume point.
type LogFileCheckpoint struct {
	InformationSystem         string
	ID                        int64
	FileName                  string
	CreateDate                time.Time
	ModificationDate          time.Time
	LastEventNumber           int64
	LastCurrentFileReferences string
	LastCurrentFileData       string
	LastStreamPosition        int64
}

// Position returns the stored reader position exactly as persisted.
func (c LogFileCheckpoint) Position() Position {
	return Position{
		EventNumber:           c.LastEventNumber,
		CurrentFileReferences: c.LastCurrentFileReferences,
		CurrentFileData:       c.LastCurrentFileData,
		StreamPosition:        c.LastStreamPosition,
	}
}
