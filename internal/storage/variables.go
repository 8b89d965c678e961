// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

/*
variables.go - Durable Variable Store

Persists update-run bookkeeping (season cursors, entity cursors, anonymize
watermarks) across restarts in a BadgerDB key-value store. Values are JSON
so the same store serves any cursor shape without schema migrations.
*/

package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/sc2-pulse/laddersync/internal/config"
	"github.com/sc2-pulse/laddersync/internal/models"
)

// ErrNotFound is returned when a variable has never been set.
var ErrNotFound = errors.New("storage: variable not found")

// Well-known variable key prefixes. Cursor keys append the region or
// entity name after the prefix.
const (
	keyPrefixSeasonCursor = "cursor.season."
	keyPrefixEntityCursor = "cursor.entity."
	keySeasonLastUpdated  = "season.last_updated."
	keyAnonymizeWatermark = "anonymize.watermark"
)

// VariableStore is a durable string-keyed JSON store backed by BadgerDB.
type VariableStore struct {
	db *badger.DB
}

// Open opens the variable store at the configured path. With
// cfg.InMemory set the store lives entirely in RAM, which tests use to
// avoid touching the filesystem.
func Open(cfg config.StorageConfig) (*VariableStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = true
		opts.ValueLogFileSize = 16 << 20
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open variable store: %w", err)
	}
	return &VariableStore{db: db}, nil
}

// Close releases the underlying database.
func (s *VariableStore) Close() error {
	return s.db.Close()
}

// Set stores v under key as JSON, replacing any previous value.
func (s *VariableStore) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal variable %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("set variable %s: %w", key, err)
	}
	return nil
}

// Get loads the value stored under key into v. Returns ErrNotFound when
// the key has never been set.
func (s *VariableStore) Get(key string, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("get variable %s: %w", key, err)
	}
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (s *VariableStore) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete variable %s: %w", key, err)
	}
	return nil
}

// SeasonCursor returns the persisted season update cursor for a region,
// or a zero cursor when none was stored yet.
func (s *VariableStore) SeasonCursor(region models.Region) (models.SeasonUpdateCursor, error) {
	var cur models.SeasonUpdateCursor
	err := s.Get(keyPrefixSeasonCursor+string(region), &cur)
	if errors.Is(err, ErrNotFound) {
		return models.SeasonUpdateCursor{}, nil
	}
	return cur, err
}

// SetSeasonCursor persists the season update cursor for a region.
func (s *VariableStore) SetSeasonCursor(region models.Region, cur models.SeasonUpdateCursor) error {
	return s.Set(keyPrefixSeasonCursor+string(region), cur)
}

// EntityCursor returns the persisted backlog cursor for a named entity
// sweep ("character", "clan_member"), or a zero cursor when unset.
func (s *VariableStore) EntityCursor(entity string) (models.EntityUpdateCursor, error) {
	var cur models.EntityUpdateCursor
	err := s.Get(keyPrefixEntityCursor+entity, &cur)
	if errors.Is(err, ErrNotFound) {
		return models.EntityUpdateCursor{}, nil
	}
	return cur, err
}

// SetEntityCursor persists the backlog cursor for a named entity sweep.
func (s *VariableStore) SetEntityCursor(entity string, cur models.EntityUpdateCursor) error {
	return s.Set(keyPrefixEntityCursor+entity, cur)
}

// SeasonLastUpdated returns when a season was last refreshed in a region.
// The zero time means it was never refreshed.
func (s *VariableStore) SeasonLastUpdated(region models.Region, seasonID int) (time.Time, error) {
	var t time.Time
	key := fmt.Sprintf("%s%s.%d", keySeasonLastUpdated, region, seasonID)
	err := s.Get(key, &t)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	return t, err
}

// SetSeasonLastUpdated records a season refresh instant for a region.
func (s *VariableStore) SetSeasonLastUpdated(region models.Region, seasonID int, t time.Time) error {
	key := fmt.Sprintf("%s%s.%d", keySeasonLastUpdated, region, seasonID)
	return s.Set(key, t)
}

// AnonymizeWatermark returns the instant up to which retention
// anonymization has been applied, or the zero time when never run.
func (s *VariableStore) AnonymizeWatermark() (time.Time, error) {
	var t time.Time
	err := s.Get(keyAnonymizeWatermark, &t)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	return t, err
}

// SetAnonymizeWatermark advances the retention anonymization watermark.
func (s *VariableStore) SetAnonymizeWatermark(t time.Time) error {
	return s.Set(keyAnonymizeWatermark, t)
}
