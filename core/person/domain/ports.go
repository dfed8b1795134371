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

import "context"

// PersonStore is the persistence port for persons.
//
// Every write is its own unit of work: implementations commit on success
// and roll back on failure. Errors are returned as-is, never retried.
type PersonStore interface {
	// FindAll returns every person ordered by id. No rows is an empty slice.
	FindAll(ctx context.Context) ([]Person, error)

	// FindByID returns (nil, nil) when no person has that id.
	FindByID(ctx context.Context, id int64) (*Person, error)

	// Insert persists p and assigns p.ID.
	Insert(ctx context.Context, p *Person) error

	// Update overwrites name, surname, birth date, age and update timestamp
	// of the row with p.ID. The insert timestamp is never touched. Updating a
	// missing row is not an error.
	Update(ctx context.Context, p *Person) error

	// Upsert inserts when p.ID is nil and updates otherwise.
	Upsert(ctx context.Context, p *Person) error

	// DeleteByID removes the row. A missing row is not an error.
	DeleteByID(ctx context.Context, id int64) error
}
