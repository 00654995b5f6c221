package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMissingTime is returned when sample metadata has no timestamp.
var ErrMissingTime = errors.New("sample metadata has no time")

// Sample is a single coverage probe migrated into the warehouse.
// Hash is the natural key; inserting an existing hash is a no-op.
type Sample struct {
	Hash      string    `db:"hash"      json:"hash"`
	Time      time.Time `db:"time"      json:"time"`
	RSSI      *float64  `db:"rssi"      json:"rssi"`
	SNR       *float64  `db:"snr"       json:"snr"`
	Observed  bool      `db:"observed"  json:"observed"`
	Repeaters []string  `db:"repeaters" json:"repeaters"`
}

// SampleArchive is an append-only archive row holding the raw metadata of an
// archived key.
type SampleArchive struct {
	ID         int64           `db:"id"          json:"id"`
	InsertedAt time.Time       `db:"inserted_at" json:"inserted_at"`
	Data       json.RawMessage `db:"data"        json:"data"`
}

type sampleMetadata struct {
	Time     *int64   `json:"time"`
	RSSI     *float64 `json:"rssi"`
	SNR      *float64 `json:"snr"`
	Observed flexBool `json:"observed"`
	Path     []string `json:"path"`
}

// SampleFromMetadata converts a sample key and its metadata to a warehouse row.
func SampleFromMetadata(key string, metadata []byte) (Sample, error) {
	var m sampleMetadata
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m); err != nil {
			return Sample{}, fmt.Errorf("decode sample %s metadata: %w", key, err)
		}
	}
	if m.Time == nil {
		return Sample{}, fmt.Errorf("sample %s: %w", key, ErrMissingTime)
	}

	path := m.Path
	if path == nil {
		path = []string{}
	}

	return Sample{
		Hash:      key,
		Time:      FromMillis(*m.Time),
		RSSI:      m.RSSI,
		SNR:       m.SNR,
		Observed:  bool(m.Observed),
		Repeaters: path,
	}, nil
}

// ArchiveFromMetadata wraps an archived key's metadata, tagged with the key
// name under "hash", into an archive row stamped with insertedAt.
func ArchiveFromMetadata(key string, metadata []byte, insertedAt time.Time) (SampleArchive, error) {
	fields := map[string]any{}
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &fields); err != nil {
			return SampleArchive{}, fmt.Errorf("decode archive %s metadata: %w", key, err)
		}
	}
	fields["hash"] = key

	data, err := json.Marshal(fields)
	if err != nil {
		return SampleArchive{}, fmt.Errorf("encode archive %s: %w", key, err)
	}
	return SampleArchive{InsertedAt: insertedAt, Data: data}, nil
}

// flexBool accepts true/false as well as the 0/1 integers older writers used.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*b = false
	case bool:
		*b = flexBool(t)
	case float64:
		*b = t != 0
	default:
		return fmt.Errorf("observed: unsupported value %s", string(data))
	}
	return nil
}
