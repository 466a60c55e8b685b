/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"path/filepath"

	"github.com/Seednode/lineup/lineup"
)

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// openStorage builds the backend selected by --store. The returned close
// function is never nil.
func openStorage(cfg *Config) (lineup.Storage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.store {
	case storeFile:
		fs, err := lineup.NewFileStorage(cfg.dataDir)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case storeSQLite:
		db, err := lineup.OpenSQLite(filepath.Join(cfg.dataDir, "lineup.db"))
		if err != nil {
			return nil, noop, err
		}
		return db, db.Close, nil
	default:
		return lineup.NewMemoryStorage(), noop, nil
	}
}
