package geonames

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Record is one geoname as returned by the service. The set of keys depends
// on the endpoint and the requested Style, so it is kept as a map.
type Record map[string]any

const (
	keyGeonameID = "geonameId"
	keyName      = "name"
	keyRank      = "rank"
	keyDistance  = "distance"
)

// GeonameID returns the integer identifier of the record. Strings must be
// base 10 integers; leading zeros are ignored.
func (r Record) GeonameID() (int64, error) {
	raw, ok := r[keyGeonameID]
	if !ok || raw == nil {
		return 0, &InvalidArgumentError{Field: keyGeonameID, Reason: "missing"}
	}
	raw, ok = scalar(raw)
	if !ok {
		return 0, &InvalidArgumentError{Field: keyGeonameID, Reason: fmt.Sprintf("not an integer: %v", r[keyGeonameID])}
	}
	// cast parses strings with base 0, which would read "0123" as octal
	if s, ok := raw.(string); ok {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, &InvalidArgumentError{Field: keyGeonameID, Reason: fmt.Sprintf("not an integer: %q", s)}
		}
		return id, nil
	}
	id, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, &InvalidArgumentError{Field: keyGeonameID, Reason: fmt.Sprintf("not an integer: %v", r[keyGeonameID])}
	}
	if f, ok := raw.(float64); ok && f != float64(id) {
		return 0, &InvalidArgumentError{Field: keyGeonameID, Reason: fmt.Sprintf("not an integer: %v", f)}
	}
	return id, nil
}

// Name returns the "name" field, or "" when absent.
func (r Record) Name() string {
	return cast.ToString(r[keyName])
}

// Rank returns the wikipedia relevance rank.
func (r Record) Rank() (float64, error) {
	return r.number(keyRank)
}

// Distance returns the distance in km from the queried point.
func (r Record) Distance() (float64, error) {
	return r.number(keyDistance)
}

func (r Record) number(key string) (float64, error) {
	raw, ok := r[key]
	if !ok || raw == nil {
		return 0, &InvalidArgumentError{Field: key, Reason: "missing"}
	}
	raw, ok = scalar(raw)
	if !ok {
		return 0, &InvalidArgumentError{Field: key, Reason: fmt.Sprintf("not a number: %v", r[key])}
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, &InvalidArgumentError{Field: key, Reason: fmt.Sprintf("not a number: %v", r[key])}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &InvalidArgumentError{Field: key, Reason: fmt.Sprintf("not a finite number: %v", r[key])}
	}
	return v, nil
}

// scalar accepts numbers and trimmed strings. cast would turn a bool into 0
// or 1, which is never a valid id or measurement.
func scalar(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case bool, nil, []any, map[string]any:
		return nil, false
	default:
		return v, true
	}
}

// coerceDistance rewrites the "distance" field of every record that has one
// as a float64. The service sends distance as text.
func coerceDistance(records []Record) error {
	for i, rec := range records {
		if _, ok := rec[keyDistance]; !ok {
			continue
		}
		d, err := rec.Distance()
		if err != nil {
			return fmt.Errorf("record %d: distance %v is not a number", i, rec[keyDistance])
		}
		rec[keyDistance] = d
	}
	return nil
}
