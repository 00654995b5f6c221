package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// CoverageRecord aggregates the observations made inside one geohash cell.
// Key is the geohash; a key that does not decode to a valid location marks
// the record as corrupt.
type CoverageRecord struct {
	Geohash        string            `json:"hash"`
	ObservedCount  int               `json:"observed"`
	HeardCount     int               `json:"heard"`
	LostCount      int               `json:"lost"`
	SNR            *float64          `json:"snr"`
	RSSI           *float64          `json:"rssi"`
	UpdatedAt      time.Time         `json:"updated"`
	LastObservedAt time.Time         `json:"lastObserved"`
	LastHeardAt    time.Time         `json:"lastHeard"`
	HitRepeaters   []string          `json:"hitRepeaters"`
	Values         []json.RawMessage `json:"values"`
}

type coverageMetadata struct {
	Observed     *int     `json:"observed"`
	Heard        int      `json:"heard"`
	Lost         int      `json:"lost"`
	SNR          *float64 `json:"snr"`
	RSSI         *float64 `json:"rssi"`
	Updated      *int64   `json:"updated"`
	LastObserved *int64   `json:"lastObserved"`
	LastHeard    int64    `json:"lastHeard"`
	HitRepeaters []string `json:"hitRepeaters"`
}

// CoverageFromMetadata decodes coverage key metadata plus its stored sample
// values. Older records only carry heard/lastHeard, so observed falls back to
// heard and both updated and lastObserved fall back to lastHeard.
func CoverageFromMetadata(key string, metadata []byte, values []json.RawMessage) (CoverageRecord, error) {
	var m coverageMetadata
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m); err != nil {
			return CoverageRecord{}, fmt.Errorf("decode coverage %s metadata: %w", key, err)
		}
	}

	var lastHeard int64
	if m.Heard > 0 {
		lastHeard = m.LastHeard
	}
	updated := lastHeard
	if m.Updated != nil {
		updated = *m.Updated
	}
	lastObserved := lastHeard
	if m.LastObserved != nil {
		lastObserved = *m.LastObserved
	}
	observed := m.Heard
	if m.Observed != nil {
		observed = *m.Observed
	}

	hit := m.HitRepeaters
	if hit == nil {
		hit = []string{}
	}
	if values == nil {
		values = []json.RawMessage{}
	}

	return CoverageRecord{
		Geohash:        key,
		ObservedCount:  observed,
		HeardCount:     m.Heard,
		LostCount:      m.Lost,
		SNR:            m.SNR,
		RSSI:           m.RSSI,
		UpdatedAt:      FromMillis(updated),
		LastObservedAt: FromMillis(lastObserved),
		LastHeardAt:    FromMillis(lastHeard),
		HitRepeaters:   hit,
		Values:         values,
	}, nil
}
