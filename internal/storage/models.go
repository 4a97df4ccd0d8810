package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// NarrativeEntry is one cached generated section for a district. A full
// dossier is the set of rows sharing a key; the single brief is stored
// under its own section name. Rows are overwritten as a unit per key;
// there is no per-row expiry.
type NarrativeEntry struct {
	Key       string
	Section   string
	Text      string
	Source    string
	CreatedAt time.Time
}

// Advisory is an ingested policy circular (PDF or web page) whose text is
// offered as extra prompt context for its crop.
type Advisory struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Crop      string    `json:"crop"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
