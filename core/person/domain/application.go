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
	"context"
	"log/slog"

	"persons/modules/clock"
)

// NewApp wires the service. A nil clock uses the wall clock.
func NewApp(store PersonStore, c clock.Clock) (*Application, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if c == nil {
		c = clock.RealClockProvider()
	}
	return &Application{store: store, clock: c}, nil
}

func (app *Application) FindAll(ctx context.Context) ([]Person, error) {
	return app.store.FindAll(ctx)
}

// FindByID returns (nil, nil) for a nil id without touching the store.
func (app *Application) FindByID(ctx context.Context, id *int64) (*Person, error) {
	if id == nil {
		return nil, nil
	}
	return app.store.FindByID(ctx, *id)
}

// Save derives Age, stamps the timestamps and issues exactly one store
// write: Insert for a new person, Update otherwise. The mutations are made
// on p itself.
func (app *Application) Save(ctx context.Context, p *Person) error {
	if p == nil {
		return ErrNilPerson
	}

	isNew := p.IsNew()
	now := app.clock.Now()

	if p.BirthDate != nil {
		p.Age = YearsBetween(*p.BirthDate, now)
	}
	p.UpdateTimestamp = now

	if isNew {
		p.InsertTimestamp = now
		if err := app.store.Insert(ctx, p); err != nil {
			return err
		}
		if p.ID != nil {
			slog.DebugContext(ctx, "inserted person", slog.Int64("id", *p.ID))
		}
		return nil
	}

	if err := app.store.Update(ctx, p); err != nil {
		return err
	}
	slog.DebugContext(ctx, "updated person", slog.Int64("id", *p.ID))
	return nil
}

// Delete is a no-op for a nil id.
func (app *Application) Delete(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if err := app.store.DeleteByID(ctx, *id); err != nil {
		return err
	}
	slog.DebugContext(ctx, "deleted person", slog.Int64("id", *id))
	return nil
}
