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

package core

import "errors"

// Domain validation errors
var (
	// ErrEmptyTenantID indicates a missing tenant identifier.
	ErrEmptyTenantID = errors.New("tenant id cannot be empty")

	// ErrEmptyPlatform indicates a missing platform identifier.
	ErrEmptyPlatform = errors.New("platform cannot be empty")

	// ErrEmptyObjectType indicates a missing object type.
	ErrEmptyObjectType = errors.New("object type cannot be empty")

	// ErrEmptyOriginalID indicates a missing source record identifier.
	ErrEmptyOriginalID = errors.New("original id cannot be empty")

	// ErrInvalidKeyCharacter indicates a key component containing a
	// reserved separator character.
	ErrInvalidKeyCharacter = errors.New("key component contains a reserved character")

	// ErrInvalidMode indicates an unrecognized sync mode.
	ErrInvalidMode = errors.New("invalid sync mode")

	// ErrEmptyContent indicates normalized content with no title and no body.
	ErrEmptyContent = errors.New("normalized content cannot be empty")
)
