// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package params versions, stores, and publishes model parameters.
//
// A Snapshot is an immutable copy of every encoder weight plus the
// architecture needed to rebuild the model. Snapshots round-trip
// through gzip-compressed JSON, persist in BadgerDB with content-hash
// verification, and go live through an atomic pointer swap so readers
// in flight finish on the parameters they started with.
package params

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/layers"
)

// ParamsSchemaVersion is the serialization schema version. Bump on any
// breaking change to Snapshot's structure or tensor naming.
const ParamsSchemaVersion = "1.0"

// StateTensor is one named parameter tensor in serialized form.
type StateTensor struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float32 `json:"data"`
}

// TrainInfo summarizes the training run that produced a snapshot.
type TrainInfo struct {
	// RunID is the UUID of the training run.
	RunID string `json:"run_id"`

	// Epochs is the number of epochs completed.
	Epochs int `json:"epochs"`

	// FinalLoss is the last epoch's mean training loss.
	FinalLoss float64 `json:"final_loss"`

	// Converged reports whether the run hit its plateau criterion
	// rather than the epoch budget.
	Converged bool `json:"converged"`
}

// Snapshot is an immutable, versioned set of encoder parameters.
type Snapshot struct {
	// Version is derived from the run ID and capture time:
	// SHA256(runID:createdAtMilli)[:16].
	Version string `json:"version"`

	// SchemaVersion records the serialization schema.
	SchemaVersion string `json:"schema_version"`

	// CreatedAtMilli is the capture time (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// Train summarizes the producing run.
	Train TrainInfo `json:"train"`

	// Architecture rebuilds the layer stack.
	Architecture layers.Config `json:"architecture"`

	// ReadoutName selects the pooling strategy.
	ReadoutName string `json:"readout_name"`

	// EmbedDim is the embedding width.
	EmbedDim int `json:"embed_dim"`

	// Tensors holds every parameter in the encoder's stable order.
	Tensors []StateTensor `json:"tensors"`
}

// Capture deep-copies an encoder's parameters into a new snapshot.
func Capture(enc *layers.Encoder, info TrainInfo) *Snapshot {
	now := time.Now().UnixMilli()
	named := enc.Params()

	s := &Snapshot{
		Version:        versionID(info.RunID, now),
		SchemaVersion:  ParamsSchemaVersion,
		CreatedAtMilli: now,
		Train:          info,
		Architecture:   enc.Config(),
		ReadoutName:    enc.ReadoutName(),
		EmbedDim:       enc.EmbedDim(),
		Tensors:        make([]StateTensor, 0, len(named)),
	}
	for _, nt := range named {
		s.Tensors = append(s.Tensors, StateTensor{
			Name: nt.Name,
			Rows: nt.Tensor.Rows(),
			Cols: nt.Tensor.Cols(),
			Data: append([]float32(nil), nt.Tensor.Data()...),
		})
	}
	return s
}

// ParamCount returns the total number of scalar parameters.
func (s *Snapshot) ParamCount() int {
	n := 0
	for _, st := range s.Tensors {
		n += len(st.Data)
	}
	return n
}

// Restore builds a fresh encoder carrying the snapshot's weights.
//
// Description:
//
//	Reconstructs the architecture from the stored config, then copies
//	every stored tensor into the matching named parameter. A name or
//	shape mismatch means the blob was produced by an incompatible
//	build and yields an IncompatibleVersionError; the partially built
//	encoder is discarded.
func (s *Snapshot) Restore() (*layers.Encoder, error) {
	if s.SchemaVersion != ParamsSchemaVersion {
		return nil, &IncompatibleVersionError{
			Version:       s.Version,
			SchemaVersion: s.SchemaVersion,
			Reason:        fmt.Sprintf("schema version %q not supported (want %s)", s.SchemaVersion, ParamsSchemaVersion),
		}
	}

	// Initial weights are immediately overwritten; the seed is irrelevant.
	enc, err := layers.NewEncoder(s.Architecture, s.ReadoutName, s.EmbedDim, rand.New(rand.NewSource(0)))
	if err != nil {
		return nil, &IncompatibleVersionError{
			Version:       s.Version,
			SchemaVersion: s.SchemaVersion,
			Reason:        fmt.Sprintf("stored architecture does not build: %v", err),
		}
	}

	byName := make(map[string]int, len(s.Tensors))
	for i, st := range s.Tensors {
		byName[st.Name] = i
	}

	named := enc.Params()
	if len(named) != len(s.Tensors) {
		return nil, &IncompatibleVersionError{
			Version:       s.Version,
			SchemaVersion: s.SchemaVersion,
			Reason:        fmt.Sprintf("blob holds %d tensors, model wants %d", len(s.Tensors), len(named)),
		}
	}
	for _, nt := range named {
		i, ok := byName[nt.Name]
		if !ok {
			return nil, &IncompatibleVersionError{
				Version:       s.Version,
				SchemaVersion: s.SchemaVersion,
				Reason:        fmt.Sprintf("blob is missing tensor %q", nt.Name),
			}
		}
		st := s.Tensors[i]
		if st.Rows != nt.Tensor.Rows() || st.Cols != nt.Tensor.Cols() || len(st.Data) != nt.Tensor.Len() {
			return nil, &IncompatibleVersionError{
				Version:       s.Version,
				SchemaVersion: s.SchemaVersion,
				Reason: fmt.Sprintf("tensor %q is %dx%d (%d values), model wants %dx%d",
					nt.Name, st.Rows, st.Cols, len(st.Data), nt.Tensor.Rows(), nt.Tensor.Cols()),
			}
		}
		copy(nt.Tensor.Data(), st.Data)
	}
	return enc, nil
}

// Encode serializes the snapshot as gzip-compressed JSON.
func (s *Snapshot) Encode() ([]byte, error) {
	jsonData, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return compressed.Bytes(), nil
}

// Decode reverses Encode. A blob with an unknown schema version yields
// an IncompatibleVersionError.
func Decode(data []byte) (*Snapshot, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot: %w", err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("reading decompressed snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(jsonData, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	if s.SchemaVersion != ParamsSchemaVersion {
		return nil, &IncompatibleVersionError{
			Version:       s.Version,
			SchemaVersion: s.SchemaVersion,
			Reason:        fmt.Sprintf("schema version %q not supported (want %s)", s.SchemaVersion, ParamsSchemaVersion),
		}
	}
	return &s, nil
}

// versionID derives the snapshot version key.
func versionID(runID string, createdAtMilli int64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", runID, createdAtMilli)))
	return hex.EncodeToString(h[:])[:16]
}
