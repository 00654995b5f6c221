// Package models contains shared data models used across the meshcover codebase.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RepeaterRecord is a repeater registration held in the key-value store.
// Key is the store entry name and encodes the registered location. Several
// records may share an ID when a repeater re-registers at a slightly
// different position (GPS drift).
type RepeaterRecord struct {
	Key        string    `json:"key"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Elevation  *float64  `json:"elev"`
	ObservedAt time.Time `json:"time"`
}

// Repeater is the relational row written by the put path.
// (ID, Hash) is the primary key; writes replace any existing row.
type Repeater struct {
	ID        string    `db:"id"        json:"id"`
	Hash      string    `db:"hash"      json:"hash"`
	Time      time.Time `db:"time"      json:"time"`
	Name      string    `db:"name"      json:"name"`
	Elevation *float64  `db:"elevation" json:"elevation"`
}

type repeaterMetadata struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Lat  float64  `json:"lat"`
	Lon  float64  `json:"lon"`
	Elev *float64 `json:"elev"`
	Time int64    `json:"time"`
}

// RepeaterFromMetadata decodes the metadata attached to a repeater key.
// A missing time decodes as the Unix epoch so the record reads as stale.
func RepeaterFromMetadata(key string, metadata []byte) (RepeaterRecord, error) {
	var m repeaterMetadata
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m); err != nil {
			return RepeaterRecord{}, fmt.Errorf("decode repeater %s metadata: %w", key, err)
		}
	}
	return RepeaterRecord{
		Key:        key,
		ID:         m.ID,
		Name:       m.Name,
		Lat:        m.Lat,
		Lon:        m.Lon,
		Elevation:  m.Elev,
		ObservedAt: FromMillis(m.Time),
	}, nil
}

// FromMillis converts epoch milliseconds, the timestamp unit used in key
// metadata, to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
