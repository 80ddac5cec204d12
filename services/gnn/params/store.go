// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package params

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB key layout for parameter snapshots.
const (
	keyPrefixParams = "gnn:params:"
	keyPrefixRun    = "gnn:params:run:"
	keySuffixData   = ":data"
	keySuffixMeta   = ":meta"
	keyLatest       = "gnn:params:latest"
)

// Metadata describes a stored snapshot without its tensor payload.
type Metadata struct {
	// Version is the snapshot version key.
	Version string `json:"version"`

	// RunID is the producing training run.
	RunID string `json:"run_id"`

	// CreatedAtMilli is the capture time (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// SchemaVersion is the serialization schema version.
	SchemaVersion string `json:"schema_version"`

	// TensorCount and ParamCount summarize the payload.
	TensorCount int `json:"tensor_count"`
	ParamCount  int `json:"param_count"`

	// EmbedDim is the embedding width of the stored model.
	EmbedDim int `json:"embed_dim"`

	// FinalLoss and Converged carry the run outcome.
	FinalLoss float64 `json:"final_loss"`
	Converged bool    `json:"converged"`

	// CompressedSize is the stored payload size in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 of the compressed payload.
	ContentHash string `json:"content_hash"`
}

// Store persists parameter snapshots in BadgerDB.
//
// Description:
//
//	Snapshots are stored as gzip-compressed JSON under a version key,
//	with separate metadata entries for cheap listing, a latest pointer,
//	and a run-ID reverse index. Every save happens in one transaction,
//	so a crash never leaves a latest pointer at a missing blob.
//
// Key Schema:
//
//	gnn:params:{version}:data → gzip(JSON(Snapshot))
//	gnn:params:{version}:meta → JSON(Metadata)
//	gnn:params:latest         → version
//	gnn:params:run:{runID}    → version
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency
//	control.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewStore creates a Store on an opened BadgerDB instance.
func NewStore(db *badger.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Store{db: db, logger: logger}, nil
}

// Save persists a snapshot and moves the latest pointer to it.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (*Metadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if snap == nil {
		return nil, fmt.Errorf("snapshot must not be nil")
	}
	if snap.Version == "" {
		return nil, fmt.Errorf("snapshot has no version")
	}

	payload, err := snap.Encode()
	if err != nil {
		return nil, err
	}

	meta := &Metadata{
		Version:        snap.Version,
		RunID:          snap.Train.RunID,
		CreatedAtMilli: snap.CreatedAtMilli,
		SchemaVersion:  snap.SchemaVersion,
		TensorCount:    len(snap.Tensors),
		ParamCount:     snap.ParamCount(),
		EmbedDim:       snap.EmbedDim,
		FinalLoss:      snap.Train.FinalLoss,
		Converged:      snap.Train.Converged,
		CompressedSize: int64(len(payload)),
		ContentHash:    contentHash(payload),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	dataKey := keyPrefixParams + snap.Version + keySuffixData
	metaKey := keyPrefixParams + snap.Version + keySuffixMeta
	runKey := keyPrefixRun + snap.Train.RunID

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), payload); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(keyLatest), []byte(snap.Version)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if snap.Train.RunID != "" {
			if err := txn.Set([]byte(runKey), []byte(snap.Version)); err != nil {
				return fmt.Errorf("storing run index: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot to badger: %w", err)
	}

	s.logger.Info("parameter snapshot saved",
		slog.String("version", snap.Version),
		slog.String("run_id", snap.Train.RunID),
		slog.Int("param_count", meta.ParamCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves and decodes a snapshot by version, verifying the
// payload hash against the stored metadata first.
func (s *Store) Load(ctx context.Context, version string) (*Snapshot, *Metadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if version == "" {
		return nil, nil, fmt.Errorf("version must not be empty")
	}

	dataKey := keyPrefixParams + version + keySuffixData
	metaKey := keyPrefixParams + version + keySuffixMeta

	var payload, metaJSON []byte
	err := s.db.View(func(txn *badger.Txn) error {
		dataItem, err := txn.Get([]byte(dataKey))
		if err != nil {
			return fmt.Errorf("reading data for %s: %w", version, err)
		}
		payload, err = dataItem.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copying data for %s: %w", version, err)
		}

		metaItem, err := txn.Get([]byte(metaKey))
		if err != nil {
			return fmt.Errorf("reading metadata for %s: %w", version, err)
		}
		metaJSON, err = metaItem.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copying metadata for %s: %w", version, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("%w: version %s", ErrNotFound, version)
		}
		return nil, nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata for %s: %w", version, err)
	}
	if meta.ContentHash != "" && meta.ContentHash != contentHash(payload) {
		return nil, nil, fmt.Errorf("integrity check failed for %s: expected hash %s, got %s",
			version, meta.ContentHash, contentHash(payload))
	}

	snap, err := Decode(payload)
	if err != nil {
		return nil, nil, err
	}
	return snap, &meta, nil
}

// LoadLatest loads the snapshot the latest pointer names.
func (s *Store) LoadLatest(ctx context.Context) (*Snapshot, *Metadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}

	var version string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLatest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			version = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("%w: no latest pointer", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("reading latest pointer: %w", err)
	}

	return s.Load(ctx, version)
}

// LoadRun loads the snapshot produced by a training run.
func (s *Store) LoadRun(ctx context.Context, runID string) (*Snapshot, *Metadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if runID == "" {
		return nil, nil, fmt.Errorf("run ID must not be empty")
	}

	var version string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixRun + runID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			version = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil, nil, fmt.Errorf("reading run index for %s: %w", runID, err)
	}

	return s.Load(ctx, version)
}

// List returns stored snapshot metadata, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Metadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = 100
	}

	var results []*Metadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixParams)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(keyPrefixParams)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !isMetaKey(key) {
				continue
			}

			var meta Metadata
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				s.logger.Warn("skipping corrupt metadata", slog.String("key", key), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sortMetadataByDate(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a snapshot. If it was the latest, the latest pointer
// is removed with it.
func (s *Store) Delete(ctx context.Context, version string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if version == "" {
		return fmt.Errorf("version must not be empty")
	}

	dataKey := keyPrefixParams + version + keySuffixData
	metaKey := keyPrefixParams + version + keySuffixMeta

	err := s.db.Update(func(txn *badger.Txn) error {
		// The run index entry needs the run ID from the metadata.
		var runID string
		if item, err := txn.Get([]byte(metaKey)); err == nil {
			var meta Metadata
			_ = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			runID = meta.RunID
		}

		if err := txn.Delete([]byte(dataKey)); err != nil && err != badger.ErrKeyNotFound {
			return fmt.Errorf("deleting data: %w", err)
		}
		if err := txn.Delete([]byte(metaKey)); err != nil && err != badger.ErrKeyNotFound {
			return fmt.Errorf("deleting metadata: %w", err)
		}
		if runID != "" {
			if err := txn.Delete([]byte(keyPrefixRun + runID)); err != nil && err != badger.ErrKeyNotFound {
				return fmt.Errorf("deleting run index: %w", err)
			}
		}

		item, err := txn.Get([]byte(keyLatest))
		if err == nil {
			var currentLatest string
			_ = item.Value(func(val []byte) error {
				currentLatest = string(val)
				return nil
			})
			if currentLatest == version {
				if err := txn.Delete([]byte(keyLatest)); err != nil && err != badger.ErrKeyNotFound {
					return fmt.Errorf("deleting latest pointer: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", version, err)
	}

	s.logger.Info("parameter snapshot deleted", slog.String("version", version))
	return nil
}

// contentHash returns the hex-encoded SHA256 hash of data.
func contentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// isMetaKey returns true if the key ends with the metadata suffix.
func isMetaKey(key string) bool {
	return len(key) > len(keySuffixMeta) && key[len(key)-len(keySuffixMeta):] == keySuffixMeta
}

// sortMetadataByDate sorts metadata by CreatedAtMilli descending.
func sortMetadataByDate(metas []*Metadata) {
	for i := 1; i < len(metas); i++ {
		for j := i; j > 0 && metas[j].CreatedAtMilli > metas[j-1].CreatedAtMilli; j-- {
			metas[j], metas[j-1] = metas[j-1], metas[j]
		}
	}
}
