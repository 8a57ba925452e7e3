package scores

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/MJE43/senipy/internal/games"
)

// RecordVersion is the schema version written by this package.
const RecordVersion = 2

var (
	ErrUnknownGame        = errors.New("unknown game")
	ErrUnsupportedVersion = errors.New("unsupported score record version")
	ErrCorruptRecord      = errors.New("corrupt score record")
)

// Record maps game ids to their latest score in [0,100].
type Record map[string]int

type recordV2 struct {
	Version int            `json:"version"`
	Scores  map[string]int `json:"scores"`
}

// Scores are percentages.
const (
	MinScore = 0
	MaxScore = 100
)

// Clamp limits a score to [MinScore,MaxScore].
func Clamp(score int) int {
	return min(MaxScore, max(MinScore, score))
}

// DecodeRecord parses a stored record. Version 1 records (a bare map of
// scores) are upgraded; unknown games and non-numeric values are dropped.
func DecodeRecord(raw string) (Record, error) {
	if raw == "" {
		return Record{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	versionRaw, versioned := fields["version"]
	if !versioned {
		return sanitize(fields), nil
	}

	var version int
	if err := json.Unmarshal(versionRaw, &version); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrCorruptRecord, err)
	}
	if version > RecordVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var scores map[string]json.RawMessage
	if s, ok := fields["scores"]; ok {
		if err := json.Unmarshal(s, &scores); err != nil {
			return nil, fmt.Errorf("%w: scores: %v", ErrCorruptRecord, err)
		}
	}
	return sanitize(scores), nil
}

// EncodeRecord serialises r at the current version.
func EncodeRecord(r Record) (string, error) {
	scores := make(map[string]int, len(r))
	for id, v := range r {
		if games.Known(id) {
			scores[id] = Clamp(v)
		}
	}
	b, err := json.Marshal(recordV2{Version: RecordVersion, Scores: scores})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sanitize(raw map[string]json.RawMessage) Record {
	out := make(Record, len(raw))
	for id, v := range raw {
		if !games.Known(id) {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil || math.IsNaN(f) {
			continue
		}
		out[id] = Clamp(int(math.Round(f)))
	}
	return out
}
