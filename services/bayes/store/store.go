// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides a BadgerDB-backed registry of named networks.
//
// BadgerDB is used for local embedded storage with low-latency access.
// The store keeps the raw YAML definition of each network on disk under
// the key "network/{name}" and a parsed, immutable model in an in-memory
// cache. Writes go through the loader's full validation pipeline, so a
// malformed definition never reaches the database.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianBayes/services/bayes"
	"github.com/AleutianAI/AleutianBayes/services/bayes/loader"
)

// ErrNotFound is returned when the named network is not in the store.
var ErrNotFound = errors.New("network not found")

// keyPrefix namespaces network definitions within the database.
const keyPrefix = "network/"

// Config holds configuration for a Store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent stores. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger is the logger for store operations.
	// If nil, slog.Default() is used and BadgerDB's internal logging is
	// disabled.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a registry of named networks.
//
// Thread Safety: Store is safe for concurrent use. BadgerDB handles its
// own transaction isolation; the parsed-model cache is mutex-protected.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*bayes.Network
}

// Open creates and opens a Store with the given configuration.
//
// Description:
//
//	Opens the underlying BadgerDB (creating the directory if needed) and
//	warms the parsed-model cache from every definition already on disk.
//	Definitions that no longer parse are skipped with a warning rather
//	than failing the open: one corrupt entry must not take down the
//	registry.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
		cache:  make(map[string]*bayes.Network),
	}
	if err := s.warmCache(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// warmCache parses every stored definition into the in-memory cache.
func (s *Store) warmCache() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), keyPrefix)
			err := item.Value(func(val []byte) error {
				net, err := loader.Parse(val)
				if err != nil {
					s.logger.Warn("skipping unparseable stored network",
						"network", name,
						"error", err.Error(),
					)
					return nil
				}
				s.cache[name] = net
				return nil
			})
			if err != nil {
				return fmt.Errorf("read stored network %q: %w", name, err)
			}
		}
		return nil
	})
}

// Put validates and stores a network definition, replacing any existing
// network with the same name.
//
// Inputs:
//
//	ctx - Context for cancellation, checked before the write.
//	data - Raw YAML definition. Must pass full loader validation.
//
// Outputs:
//
//	*bayes.Network - The parsed network, keyed in the store by its name.
//	error - bayes.ErrMalformedNetwork (via errors.Is) for bad input.
func (s *Store) Put(ctx context.Context, data []byte) (*bayes.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	net, err := loader.Parse(data)
	if err != nil {
		return nil, err
	}

	key := []byte(keyPrefix + net.Name())
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, fmt.Errorf("store network %q: %w", net.Name(), err)
	}

	s.mu.Lock()
	s.cache[net.Name()] = net
	s.mu.Unlock()

	s.logger.Info("network stored",
		"network", net.Name(),
		"variables", len(net.Variables()),
	)
	return net, nil
}

// Get returns the parsed network with the given name.
//
// Outputs:
//
//	*bayes.Network - The immutable parsed model.
//	error - ErrNotFound if no network has that name.
func (s *Store) Get(ctx context.Context, name string) (*bayes.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	s.mu.RLock()
	net, ok := s.cache[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return net, nil
}

// List returns the names of all stored networks in unspecified order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.cache))
	for name := range s.cache {
		names = append(names, name)
	}
	return names, nil
}

// Delete removes the named network from the store.
//
// Outputs:
//
//	error - ErrNotFound if no network has that name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	s.mu.Lock()
	_, ok := s.cache[name]
	if ok {
		delete(s.cache, name)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + name))
	})
	if err != nil {
		return fmt.Errorf("delete network %q: %w", name, err)
	}

	s.logger.Info("network deleted", "network", name)
	return nil
}

// Close closes the underlying database.
//
// Safe to call once; the store must not be used afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}
