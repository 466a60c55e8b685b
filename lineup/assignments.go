/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lineup

import (
	"encoding/json"
	"maps"
)

// Assignments maps positions to the players standing in them.
// A missing key and an empty value both mean the position is open.
type Assignments map[PositionID]PlayerID

// Clone returns a copy without open positions.
func (a Assignments) Clone() Assignments {
	out := make(Assignments, len(a))
	for pos, player := range a {
		if player != "" {
			out[pos] = player
		}
	}
	return out
}

// Equal reports whether both maps assign the same players, ignoring open positions.
func (a Assignments) Equal(b Assignments) bool {
	return maps.Equal(a.Clone(), b.Clone())
}

// PositionOf returns the position holding player, if any.
func (a Assignments) PositionOf(player PlayerID) (PositionID, bool) {
	if player == "" {
		return "", false
	}
	for pos, p := range a {
		if p == player {
			return pos, true
		}
	}
	return "", false
}

// MarshalJSON writes a flat object of position to player. Open positions are omitted.
func (a Assignments) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[PositionID]PlayerID(a.Clone()))
}

// UnmarshalJSON accepts a flat object of position to player, where null or ""
// marks an open position.
func (a *Assignments) UnmarshalJSON(data []byte) error {
	var raw map[PositionID]*PlayerID
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Assignments, len(raw))
	for pos, player := range raw {
		if player == nil || *player == "" {
			continue
		}
		out[pos] = *player
	}
	*a = out

	return nil
}
