package models

import (
	"encoding/json"
	"time"
)

// Version is one published snapshot. Changes is a value copy of the change
// counters at publish time and is never updated afterwards.
type Version struct {
	ID          string         `json:"id"`
	Version     string         `json:"version"`
	Number      int64          `json:"-"`
	PublishedAt time.Time      `json:"published_at"`
	Changes     ChangeCounters `json:"changes"`
	FilePath    string         `json:"file_path"`
	FileURL     string         `json:"file_url"`
}

// EntityRow is a stored record of a tracked table
type EntityRow struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Snapshot holds the full contents of every tracked table at one moment
type Snapshot map[TableName][]EntityRow

// Artifact is the JSON document uploaded for every published version
type Artifact struct {
	Version     string         `json:"version"`
	PublishedAt time.Time      `json:"published_at"`
	Changes     ChangeCounters `json:"changes"`
	Tables      Snapshot       `json:"tables"`
}
