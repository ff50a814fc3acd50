package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Entity is a single record returned by the map-site API (layer, link, user, ...).
// Field names differ per resource type; the identifier field is declared by the
// resource descriptor, never guessed.
type Entity map[string]interface{}

// String returns the field formatted for display or form input.
// Missing and nil fields are "".
func (e Entity) String(field string) string {
	return formatValue(e[field])
}

// Int extracts a numeric field, accepting JSON numbers and numeric strings.
func (e Entity) Int(field string) int {
	return toInt(e[field])
}

// Bool extracts a boolean field. The API omits false flags, so absent is false.
func (e Entity) Bool(field string) bool {
	switch v := e[field].(type) {
	case bool:
		return v
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	case float64:
		return v != 0
	}
	return false
}

// Clone returns a shallow copy.
func (e Entity) Clone() Entity {
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// DecodeCollection parses a list payload. The API answers either with a JSON
// array, with an envelope {"data": [...], "next": n}, or with an object keyed by id.
func DecodeCollection(body []byte) ([]Entity, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return []Entity{}, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []Entity
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("parsing collection: %w", err)
		}
		return compact(list), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("parsing collection: %w", err)
	}
	if raw, ok := obj["data"]; ok {
		var list []Entity
		if string(raw) == "null" {
			return []Entity{}, nil
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("parsing collection data: %w", err)
		}
		return compact(list), nil
	}

	// Keyed object: keep a stable order, numeric keys first in numeric order.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		if (errA == nil) != (errB == nil) {
			return errA == nil
		}
		return keys[i] < keys[j]
	})
	list := make([]Entity, 0, len(keys))
	for _, k := range keys {
		var ent Entity
		if err := json.Unmarshal(obj[k], &ent); err != nil {
			return nil, fmt.Errorf("parsing entity %q: %w", k, err)
		}
		if ent != nil {
			list = append(list, ent)
		}
	}
	return list, nil
}

// DecodeEntity parses a single-entity payload.
func DecodeEntity(body []byte) (Entity, error) {
	var ent Entity
	if err := json.Unmarshal(body, &ent); err != nil {
		return nil, fmt.Errorf("parsing entity: %w", err)
	}
	return ent, nil
}

// FindByID scans a collection for the entity whose idField matches id.
func FindByID(list []Entity, idField, id string) (Entity, bool) {
	for _, ent := range list {
		if ent.String(idField) == id {
			return ent, true
		}
	}
	return nil, false
}

func compact(list []Entity) []Entity {
	out := list[:0]
	for _, ent := range list {
		if ent != nil {
			out = append(out, ent)
		}
	}
	return out
}

func formatValue(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case json.Number:
		return n.String()
	case bool:
		if n {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}

// toInt converts various numeric types to int.
func toInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	}
	return 0
}
