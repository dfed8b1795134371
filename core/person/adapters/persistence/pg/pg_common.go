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

package pg

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"persons/core/person/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrConstraint = errors.New("person row violates a table constraint")
	ErrNoRowID    = errors.New("insert returned no id")
)

var columns = []any{"id", "name", "surname", "birth_date", "age", "insert_timestamp", "update_timestamp"}

// PersonRow is the storage shape of domain.Person.
type PersonRow struct {
	ID              int64        `db:"id"`
	Name            string       `db:"name"`
	Surname         string       `db:"surname"`
	BirthDate       sql.NullTime `db:"birth_date"`
	Age             int32        `db:"age"`
	InsertTimestamp time.Time    `db:"insert_timestamp"`
	UpdateTimestamp time.Time    `db:"update_timestamp"`
}

func toPerson(row PersonRow) domain.Person {
	id := row.ID
	p := domain.Person{
		ID:              &id,
		Name:            row.Name,
		Surname:         row.Surname,
		Age:             int(row.Age),
		InsertTimestamp: row.InsertTimestamp,
		UpdateTimestamp: row.UpdateTimestamp,
	}
	if row.BirthDate.Valid {
		// date columns carry no zone; pin them to UTC midnight
		y, m, d := row.BirthDate.Time.Date()
		bd := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		p.BirthDate = &bd
	}
	return p
}

// birthDateArg truncates to the calendar date the user entered.
func birthDateArg(d *time.Time) sql.NullTime {
	if d == nil {
		return sql.NullTime{}
	}
	y, m, day := d.Date()
	return sql.NullTime{Time: time.Date(y, m, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// personTransformer converts scanned rows for bob.Allx.
type personTransformer struct{}

func (personTransformer) TransformScanned(rows []PersonRow) ([]domain.Person, error) {
	out := make([]domain.Person, len(rows))
	for i, r := range rows {
		out[i] = toPerson(r)
	}
	return out, nil
}

// wrapPersonError tags the operation and classifies constraint violations.
func wrapPersonError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502", "23514": // not_null_violation, check_violation
			return fmt.Errorf("person store %s: %w: %w", op, ErrConstraint, err)
		}
	}
	return fmt.Errorf("person store %s: %w", op, err)
}
