// Copyright 2025 Nhat-Nguyen Nguyen
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

package domain

import (
	"time"

	"persons/modules/clock"
)

type (
	// Application is the person service: pass-through reads, and saves that
	// derive age and stamp timestamps before delegating to the store.
	Application struct {
		store PersonStore
		clock clock.Clock
	}

	// Person is the only entity. ID is nil until the first persistence.
	Person struct {
		ID        *int64
		Name      string
		Surname   string
		BirthDate *time.Time

		// Age is a snapshot computed at the last save; it goes stale afterwards.
		Age int

		InsertTimestamp time.Time
		UpdateTimestamp time.Time
	}
)

// IsNew reports whether p has never been persisted.
func (p *Person) IsNew() bool {
	return p.ID == nil
}
