package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList stores an ordered list of opaque strings as a JSON column. JSON
// keeps the column portable between Postgres (jsonb) and the sqlite driver
// used in repository tests.
type StringList []string

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("StringList: unsupported Scan type %T", src)
	}

	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, l)
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	encoded, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Contains reports whether the list holds the exact value.
func (l StringList) Contains(value string) bool {
	for _, item := range l {
		if item == value {
			return true
		}
	}
	return false
}
