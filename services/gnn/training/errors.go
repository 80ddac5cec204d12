// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package training

import "fmt"

// maxConsecutiveDivergent is the number of back-to-back divergent
// batches tolerated before a run fails. A single NaN batch is skipped
// and logged; a streak means the optimization itself has broken down.
const maxConsecutiveDivergent = 3

// DivergentTrainingError reports a training run aborted because the
// loss produced NaN or Inf on too many consecutive batches. The
// parameter state from before the divergent batches is untouched;
// skipped batches never apply updates.
type DivergentTrainingError struct {
	// RunID identifies the failed run.
	RunID string

	// Epoch and Batch locate the final divergent batch.
	Epoch int
	Batch int

	// Consecutive is the length of the divergent streak.
	Consecutive int
}

func (e *DivergentTrainingError) Error() string {
	return fmt.Sprintf("training run %s diverged: %d consecutive non-finite losses (epoch %d, batch %d)",
		e.RunID, e.Consecutive, e.Epoch, e.Batch)
}
