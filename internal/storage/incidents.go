package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/datastore"
)

const incidentHistoryLimit int = 20

// Incident is one anti-nuke trigger or confirmation outcome, kept in a
// per-guild journal for the /quarantine list view and the stats endpoint.
type Incident struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	EventType string    `json:"event_type"`
	Score     float64   `json:"score"`
	Threshold float64   `json:"threshold"`
	Action    string    `json:"action"` // "quarantine", "ban", "reverted"
	Reason    string    `json:"reason"`
	Datetime  time.Time `json:"datetime"`
}

type incidentRecord struct {
	Incidents []Incident `json:"incidents"`
}

// IncidentJournal is an append-capped per-guild journal backed by a JSON
// file store. Losing it is harmless; the durable state lives in SQLite.
type IncidentJournal struct {
	ds     *datastore.DataStore
	cancel context.CancelFunc
}

// OpenIncidentJournal opens (or creates) the journal file. The journal owns
// the context driving the store's autosave loop; Close cancels it.
func OpenIncidentJournal(filePath string) (*IncidentJournal, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ds, err := datastore.New(ctx, filePath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open incident journal: %w", err)
	}
	return &IncidentJournal{ds: ds, cancel: cancel}, nil
}

// Close stops the autosave loop, flushes and closes the journal.
func (j *IncidentJournal) Close() error {
	j.cancel()
	return j.ds.Close()
}

func (j *IncidentJournal) guildRecord(guildID string) (*incidentRecord, error) {
	var record incidentRecord
	found, err := j.ds.Get(guildID, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal record: %w", err)
	}
	if !found {
		return &incidentRecord{}, nil
	}

	if len(record.Incidents) > incidentHistoryLimit {
		record.Incidents = record.Incidents[len(record.Incidents)-incidentHistoryLimit:]
	}
	return &record, nil
}

// Append adds an incident to a guild's journal, dropping the oldest entry
// beyond the cap.
func (j *IncidentJournal) Append(guildID string, inc Incident) error {
	record, err := j.guildRecord(guildID)
	if err != nil {
		return err
	}

	record.Incidents = append(record.Incidents, inc)
	if len(record.Incidents) > incidentHistoryLimit {
		record.Incidents = record.Incidents[len(record.Incidents)-incidentHistoryLimit:]
	}
	if err := j.ds.Set(guildID, record); err != nil {
		return fmt.Errorf("failed to write journal record: %w", err)
	}
	return nil
}

// Recent returns a guild's journal, oldest first.
func (j *IncidentJournal) Recent(guildID string) ([]Incident, error) {
	record, err := j.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.Incidents, nil
}
