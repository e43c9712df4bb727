// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history persists finished upgrade runs in an embedded
// BadgerDB so past runs survive reboots and can be inspected after
// the upgrade completed or failed.
//
// Layout:
//
//	run:<started-rfc3339nano>:<run-id> -> JSON-encoded report
//	id:<run-id>                        -> primary key bytes
//
// The time-prefixed primary key makes reverse iteration yield runs
// newest first without a separate index.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/linuxliteos/series-upgrade/cmd/liteupgrade/internal/engine"
)

// ErrNotFound is returned when no run carries the requested id.
var ErrNotFound = errors.New("run not found")

const (
	runPrefix = "run:"
	idPrefix  = "id:"
)

// Store is a badger-backed archive of upgrade reports.
// Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the history database at dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("history: dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create history directory %s: %w", dir, err)
	}
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory store for testing.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database. Pending writes are flushed.
func (s *Store) Close() error {
	return s.db.Close()
}

func runKey(report *engine.Report) []byte {
	stamp := report.Started.UTC().Format(time.RFC3339Nano)
	return []byte(runPrefix + stamp + ":" + report.RunID)
}

// Append stores one finished report.
func (s *Store) Append(report *engine.Report) error {
	if report == nil || report.RunID == "" {
		return errors.New("history: report must carry a run id")
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report %s: %w", report.RunID, err)
	}
	key := runKey(report)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, raw); err != nil {
			return err
		}
		return txn.Set([]byte(idPrefix+report.RunID), key)
	})
}

// List returns up to limit reports, newest first. A non-positive
// limit returns everything.
func (s *Store) List(limit int) ([]engine.Report, error) {
	var reports []engine.Report
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the end of the prefix range.
		seek := append([]byte(runPrefix), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(reports) >= limit {
				break
			}
			err := it.Item().Value(func(raw []byte) error {
				var r engine.Report
				if err := json.Unmarshal(raw, &r); err != nil {
					return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
				}
				reports = append(reports, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// Get returns the report with the given run id.
func (s *Store) Get(runID string) (*engine.Report, error) {
	var report *engine.Report
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idPrefix + runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var key []byte
		if err := item.Value(func(v []byte) error {
			key = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			var r engine.Report
			if err := json.Unmarshal(raw, &r); err != nil {
				return fmt.Errorf("decoding run %s: %w", runID, err)
			}
			report = &r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Latest returns the most recent report, or ErrNotFound when the
// store is empty.
func (s *Store) Latest() (*engine.Report, error) {
	reports, err := s.List(1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNotFound
	}
	return &reports[0], nil
}
