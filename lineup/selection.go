/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lineup

import (
	"context"
	"fmt"
)

// Selection is the pending state of the tap-to-assign interaction: at most
// one player and one position. Once both are chosen the pair is assigned
// and the selection clears. It is not safe for concurrent use; each client
// connection owns its own.
type Selection struct {
	store    *Store
	player   PlayerID
	position PositionID
}

func NewSelection(store *Store) *Selection {
	return &Selection{store: store}
}

// Pending returns the currently selected player and position.
func (s *Selection) Pending() (PlayerID, PositionID) {
	return s.player, s.position
}

// SelectPlayer replaces the pending player. It reports whether an
// assignment was made, along with the resulting lineup.
func (s *Selection) SelectPlayer(ctx context.Context, player PlayerID) (Assignments, bool, error) {
	if _, ok := s.store.Catalog().Player(player); !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownPlayer, player)
	}
	s.player = player
	return s.resolve(ctx)
}

// SelectPosition replaces the pending position. It reports whether an
// assignment was made, along with the resulting lineup.
func (s *Selection) SelectPosition(ctx context.Context, position PositionID) (Assignments, bool, error) {
	if _, ok := s.store.Catalog().Position(position); !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownPosition, position)
	}
	s.position = position
	return s.resolve(ctx)
}

// Clear drops both pending selections.
func (s *Selection) Clear() {
	s.player = ""
	s.position = ""
}

func (s *Selection) resolve(ctx context.Context) (Assignments, bool, error) {
	if s.player == "" || s.position == "" {
		return nil, false, nil
	}

	player, position := s.player, s.position
	s.Clear()

	a, err := s.store.Assign(ctx, position, player)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}
