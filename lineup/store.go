/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package lineup holds the player-to-position assignment model behind the
// lineup builder: the catalog of positions and players, the store that
// enforces one position per player, its persistence backends, and the
// image export.
package lineup

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Store is the lineup for a single slot. Every successful mutation is
// persisted before the call returns.
type Store struct {
	catalog *Catalog
	storage Storage
	slot    string
	log     Logger

	mu          sync.RWMutex
	assignments Assignments
}

// Open restores the lineup saved under slot. A missing or unreadable lineup
// starts empty; Open itself only fails on programmer error.
func Open(ctx context.Context, catalog *Catalog, storage Storage, slot string, log Logger) (*Store, error) {
	if catalog == nil || storage == nil {
		return nil, errors.New("lineup: catalog and storage are required")
	}
	if log == nil {
		log = NopLogger()
	}

	s := &Store{
		catalog:     catalog,
		storage:     storage,
		slot:        slot,
		log:         log,
		assignments: make(Assignments),
	}

	saved, err := storage.Load(ctx, slot)
	switch {
	case errors.Is(err, ErrNoLineup):
		log.Debug("no saved lineup, starting empty", "slot", slot)
	case err != nil:
		log.Warn("could not restore lineup, starting empty", "slot", slot, "error", err)
	default:
		s.assignments = s.sanitize(saved)
	}

	return s, nil
}

// sanitize drops entries a well-formed lineup cannot contain: unknown
// positions or players, and any repeat of a player already placed.
func (s *Store) sanitize(saved Assignments) Assignments {
	out := make(Assignments, len(saved))
	seen := make(map[PlayerID]bool, len(saved))

	for _, pos := range s.catalog.Positions {
		player, ok := saved[pos.ID]
		if !ok || player == "" {
			continue
		}
		if _, known := s.catalog.Player(player); !known || seen[player] {
			s.log.Warn("dropping saved assignment", "slot", s.slot, "position", pos.ID, "player", player)
			continue
		}
		seen[player] = true
		out[pos.ID] = player
	}

	for pos := range saved {
		if _, ok := s.catalog.Position(pos); !ok {
			s.log.Warn("dropping saved assignment", "slot", s.slot, "position", pos)
		}
	}

	return out
}

// Slot is the storage key of this lineup.
func (s *Store) Slot() string { return s.slot }

// Catalog returns the positions and players this lineup is built from.
func (s *Store) Catalog() *Catalog { return s.catalog }

// Assign puts player in position. If player already stood somewhere else,
// that position takes over whoever was displaced from the target, or is left
// open. An empty player clears the position.
func (s *Store) Assign(ctx context.Context, position PositionID, player PlayerID) (Assignments, error) {
	if _, ok := s.catalog.Position(position); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPosition, position)
	}
	if player != "" {
		if _, ok := s.catalog.Player(player); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, player)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.assignments.Clone()

	previous := next[position]
	from, moved := next.PositionOf(player)

	set(next, position, player)
	if moved && from != position {
		set(next, from, previous)
	}

	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}

	s.log.Debug("assigned", "slot", s.slot, "position", position, "player", player, "displaced", previous)

	return next.Clone(), nil
}

// Release takes player off the field, as when a drag ends outside every
// position. Releasing a player who is not on the field changes nothing.
func (s *Store) Release(ctx context.Context, player PlayerID) (Assignments, error) {
	if player != "" {
		if _, ok := s.catalog.Player(player); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, player)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.assignments.PositionOf(player)
	if !ok {
		return s.assignments.Clone(), nil
	}

	next := s.assignments.Clone()
	delete(next, from)

	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}

	s.log.Debug("released", "slot", s.slot, "position", from, "player", player)

	return next.Clone(), nil
}

// Reset opens every position.
func (s *Store) Reset(ctx context.Context) (Assignments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(Assignments)
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}

	return next, nil
}

// commit persists next and then makes it current. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next Assignments) error {
	if err := s.storage.Save(ctx, s.slot, next); err != nil {
		return fmt.Errorf("save lineup %s: %w", s.slot, err)
	}
	s.assignments = next
	return nil
}

func set(a Assignments, position PositionID, player PlayerID) {
	if player == "" {
		delete(a, position)
		return
	}
	a[position] = player
}

// Occupant returns the player standing in position.
func (s *Store) Occupant(position PositionID) (PlayerID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, ok := s.assignments[position]
	return player, ok && player != ""
}

// PositionOf returns the position player stands in.
func (s *Store) PositionOf(player PlayerID) (PositionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.assignments.PositionOf(player)
}

// UnassignedPlayers lists, in roster order, every player not on the field.
func (s *Store) UnassignedPlayers() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	placed := make(map[PlayerID]bool, len(s.assignments))
	for _, player := range s.assignments {
		placed[player] = true
	}

	out := make([]Player, 0, len(s.catalog.Players))
	for _, p := range s.catalog.Players {
		if !placed[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot returns a copy of the current assignments.
func (s *Store) Snapshot() Assignments {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.assignments.Clone()
}
