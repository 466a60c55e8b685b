/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lineup

import "errors"

var (
	ErrUnknownPosition = errors.New("unknown position")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrNoLineup        = errors.New("no saved lineup")
)
