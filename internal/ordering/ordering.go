// Package ordering implements manual reordering of a listed collection.
//
// A Session freezes the rendered rows when ordering begins. Rows are then
// swapped with their neighbours and, for hierarchical collections, indented
// or outdented. Serialize produces the wire form posted to the order
// endpoint: "id" or "id/level" pairs joined by commas.
package ordering

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// State of an ordering session.
type State int

const (
	Normal State = iota
	Ordering
)

func (s State) String() string {
	if s == Ordering {
		return "ordering"
	}
	return "normal"
}

// ErrNotOrdering is returned by row operations outside ordering mode.
var ErrNotOrdering = errors.New("not in ordering mode")

// Entry is one row of an ordered sequence. Level is only meaningful for
// hierarchical collections.
type Entry struct {
	ID    string
	Level int
}

// NormalizeFunc adjusts levels after a row operation.
type NormalizeFunc func([]Entry)

// Session holds the manipulable sequence of one list view.
type Session struct {
	hierarchical bool
	normalize    NormalizeFunc

	state   State
	entries []Entry
}

// NewSession returns a session in Normal state. normalize may be nil; it is
// run after every swap and indent change.
func NewSession(hierarchical bool, normalize NormalizeFunc) *Session {
	return &Session{hierarchical: hierarchical, normalize: normalize}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Begin enters ordering mode with the rows in their rendered order.
func (s *Session) Begin(rows []Entry) {
	s.entries = append([]Entry(nil), rows...)
	s.state = Ordering
}

// Cancel discards local changes and returns to Normal.
func (s *Session) Cancel() {
	s.entries = nil
	s.state = Normal
}

// Committed returns to Normal after a successful commit.
func (s *Session) Committed() {
	s.Cancel()
}

// Entries returns a copy of the current sequence.
func (s *Session) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Up swaps the row with its predecessor. Moving the first row is a no-op.
func (s *Session) Up(id string) error {
	i, err := s.index(id)
	if err != nil {
		return err
	}
	if i > 0 {
		s.entries[i-1], s.entries[i] = s.entries[i], s.entries[i-1]
		s.fix()
	}
	return nil
}

// Down swaps the row with its successor. Moving the last row is a no-op.
func (s *Session) Down(id string) error {
	i, err := s.index(id)
	if err != nil {
		return err
	}
	if i < len(s.entries)-1 {
		s.entries[i+1], s.entries[i] = s.entries[i], s.entries[i+1]
		s.fix()
	}
	return nil
}

// Indent moves a row one level deeper. It is allowed only when the
// predecessor's level is at least the row's current level.
func (s *Session) Indent(id string) error {
	i, err := s.index(id)
	if err != nil {
		return err
	}
	if i > 0 && s.entries[i].Level <= s.entries[i-1].Level {
		s.entries[i].Level++
		s.fix()
	}
	return nil
}

// Outdent moves a row one level up, never below 0.
func (s *Session) Outdent(id string) error {
	i, err := s.index(id)
	if err != nil {
		return err
	}
	if s.entries[i].Level > 0 {
		s.entries[i].Level--
		s.fix()
	}
	return nil
}

// Serialize returns the wire form of the current sequence.
func (s *Session) Serialize() string {
	return Serialize(s.entries, s.hierarchical)
}

func (s *Session) index(id string) (int, error) {
	if s.state != Ordering {
		return -1, ErrNotOrdering
	}
	for i, e := range s.entries {
		if e.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("row %q not in ordering", id)
}

func (s *Session) fix() {
	if s.normalize != nil {
		s.normalize(s.entries)
	}
}

// Normalize clamps levels in place so that no row is more than one level
// deeper than its predecessor and no level is negative. The first row has
// no predecessor and is clamped to 0.
func Normalize(entries []Entry) {
	for i := range entries {
		if entries[i].Level < 0 {
			entries[i].Level = 0
		}
		if i == 0 {
			entries[i].Level = 0
			continue
		}
		if max := entries[i-1].Level + 1; entries[i].Level > max {
			entries[i].Level = max
		}
	}
}

// Serialize joins entries as "id" or "id/level" pairs.
func Serialize(entries []Entry, hierarchical bool) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		if hierarchical {
			parts[i] = e.ID + "/" + strconv.Itoa(e.Level)
		} else {
			parts[i] = e.ID
		}
	}
	return strings.Join(parts, ",")
}

// Parse decodes the wire form. A missing level is 0.
func Parse(order string) ([]Entry, error) {
	order = strings.TrimSpace(order)
	if order == "" {
		return nil, nil
	}
	var out []Entry
	for _, part := range strings.Split(order, ",") {
		id, lv, hasLevel := strings.Cut(strings.TrimSpace(part), "/")
		if id == "" {
			return nil, fmt.Errorf("empty id in order %q", order)
		}
		e := Entry{ID: id}
		if hasLevel {
			n, err := strconv.Atoi(lv)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("bad level %q for id %s", lv, id)
			}
			e.Level = n
		}
		out = append(out, e)
	}
	return out, nil
}
