package core

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
)

// Metadata is the free-form, additive payload stored next to scheduling records.
// Nothing authoritative is read back from it.
type Metadata map[string]interface{}

// Clone returns a shallow copy; nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Merge copies other into m (other wins) and returns m, allocating when m is nil.
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil {
		m = make(Metadata, len(other))
	}
	for k, v := range other {
		m[k] = v
	}
	return m
}

func (m Metadata) JSONText() (types.JSONText, error) {
	if m == nil {
		return types.JSONText("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling metadata")
	}
	return types.JSONText(data), nil
}

func MetadataFromJSON(j types.JSONText) (Metadata, error) {
	if len(j) == 0 {
		return Metadata{}, nil
	}
	m := make(Metadata)
	if err := j.Unmarshal(&m); err != nil {
		return nil, errors.Wrap(err, "unmarshalling metadata")
	}
	return m, nil
}

func (m Metadata) Value() (driver.Value, error) {
	j, err := m.JSONText()
	if err != nil {
		return nil, err
	}
	return j.Value()
}

func (m *Metadata) Scan(src interface{}) error {
	var j types.JSONText
	if err := j.Scan(src); err != nil {
		return errors.Wrap(err, "scanning metadata")
	}
	parsed, err := MetadataFromJSON(j)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
