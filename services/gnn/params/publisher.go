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
	"fmt"
	"sync/atomic"

	"github.com/bobinzuks/GNN-CODE-INTELLIGENCE-SYSTEM/services/gnn/layers"
)

// Published pairs a snapshot with its restored, ready-to-run encoder.
// Both are immutable once published.
type Published struct {
	Snapshot *Snapshot
	Encoder  *layers.Encoder
}

// Publisher hands out the live parameter set through an atomic pointer.
//
// # Thread Safety
//
// Publish and Current are lock-free. A reader that loaded the previous
// pointer keeps computing with it; the swap affects only subsequent
// loads, so no inference call ever sees half-updated weights.
type Publisher struct {
	current atomic.Pointer[Published]
}

// NewPublisher returns an empty publisher; Current is nil until the
// first Publish.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish restores the snapshot and atomically makes it the live set.
func (p *Publisher) Publish(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("params: cannot publish nil snapshot")
	}
	enc, err := s.Restore()
	if err != nil {
		return err
	}
	p.current.Store(&Published{Snapshot: s, Encoder: enc})
	return nil
}

// PublishRestored installs an already-restored pair without rebuilding
// the encoder.
func (p *Publisher) PublishRestored(pub *Published) error {
	if pub == nil || pub.Snapshot == nil || pub.Encoder == nil {
		return fmt.Errorf("params: published pair must carry a snapshot and an encoder")
	}
	p.current.Store(pub)
	return nil
}

// Current returns the live parameter set, or nil before the first
// publish.
func (p *Publisher) Current() *Published {
	return p.current.Load()
}

// Version returns the live snapshot version, or "" before the first
// publish.
func (p *Publisher) Version() string {
	pub := p.current.Load()
	if pub == nil {
		return ""
	}
	return pub.Snapshot.Version
}
