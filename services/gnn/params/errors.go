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
	"errors"
	"fmt"
)

// ErrNotFound reports that no snapshot exists for the requested
// version, run, or latest pointer.
var ErrNotFound = errors.New("params: snapshot not found")

// IncompatibleVersionError reports a stored parameter blob whose schema
// or tensor layout this build cannot load. The error is fatal to the
// load call only; the caller keeps whatever parameters it already
// serves.
type IncompatibleVersionError struct {
	// Version identifies the offending snapshot, when known.
	Version string

	// SchemaVersion is the blob's declared schema, when known.
	SchemaVersion string

	// Reason describes the mismatch.
	Reason string
}

func (e *IncompatibleVersionError) Error() string {
	if e.SchemaVersion != "" {
		return fmt.Sprintf("incompatible parameter snapshot %s (schema %s): %s", e.Version, e.SchemaVersion, e.Reason)
	}
	return fmt.Sprintf("incompatible parameter snapshot %s: %s", e.Version, e.Reason)
}
