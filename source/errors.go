// Copyright 2026 Meridian Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCursor is returned by a fetcher when asked to resume from a
	// cursor it does not recognize.
	ErrNoCursor = errors.New("unknown fetch cursor")

	// ErrExhausted is returned when FetchPage is called again after a
	// page with Done set was already returned.
	ErrExhausted = errors.New("source exhausted")
)

// NormalizationError describes a single malformed source record. The
// record is skipped and counted; the run continues.
type NormalizationError struct {
	OriginalID string
	Field      string
	Reason     string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize record %q: field %s: %s", e.OriginalID, e.Field, e.Reason)
}

// IsNormalizationError reports whether err is a *NormalizationError.
func IsNormalizationError(err error) bool {
	var ne *NormalizationError
	return errors.As(err, &ne)
}
