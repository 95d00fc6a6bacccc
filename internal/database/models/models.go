package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"
)

// StringList is a list of names stored as a JSON-encoded TEXT column.
// Scanning never fails: NULL and malformed encodings decode to an empty list.
type StringList []string

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		*l = StringList{}
		return nil
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		*l = StringList{}
		return nil
	}
	*l = names
	return nil
}

// Value implements driver.Valuer. Empty lists are stored as NULL.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("failed to encode string list: %w", err)
	}
	return string(b), nil
}

// MarshalJSON renders a nil list as [] so clients always see an array.
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Movie is a catalogue entry. Rows are immutable after ingestion.
type Movie struct {
	bun.BaseModel `bun:"table:movies,alias:m"`

	ID          int64      `bun:",pk" json:"id"`
	Title       string     `bun:",notnull" json:"title"`
	Year        *int       `bun:"year" json:"year"`
	Genres      StringList `bun:"genres,type:text" json:"genres"`
	Overview    string     `bun:"overview,nullzero" json:"overview"`
	VoteAverage float64    `bun:"vote_average,notnull,default:0" json:"vote_average"`
	VoteCount   int64      `bun:"vote_count,notnull,default:0" json:"vote_count"`
	Cast        StringList `bun:"movie_cast,type:text" json:"movie_cast"`
	Director    *string    `bun:"director" json:"director"`
}
