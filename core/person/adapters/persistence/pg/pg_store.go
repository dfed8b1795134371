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
	"context"
	"database/sql"
	"errors"

	"persons/core/person/domain"
	"persons/modules/db"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"
)

var _ domain.PersonStore = (*PostgresPersonStore)(nil)

// DefaultTable is the table created by the bundled migrations.
const DefaultTable = "person"

// PostgresPersonStore reads from a replica when one is configured and runs
// every write in its own transaction on the primary.
type PostgresPersonStore struct {
	table string
	pool  interface {
		db.ReaderConnectionManager
		db.TxManager
	}
}

func NewPostgresPersonStore(pool db.ConnectionPool, table string) *PostgresPersonStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresPersonStore{table: table, pool: pool}
}

func (s *PostgresPersonStore) FindAll(ctx context.Context) ([]domain.Person, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(s.table),
		sm.OrderBy("id"),
	)

	persons, err := bob.Allx[personTransformer](ctx, s.pool.Reader(), q, scan.StructMapper[PersonRow]())
	if err != nil {
		return nil, wrapPersonError("find all", err)
	}
	if persons == nil {
		persons = []domain.Person{}
	}
	return persons, nil
}

func (s *PostgresPersonStore) FindByID(ctx context.Context, id int64) (*domain.Person, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(s.table),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	row, err := bob.One(ctx, s.pool.Reader(), q, scan.StructMapper[PersonRow]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapPersonError("find by id", err)
	}
	p := toPerson(row)
	return &p, nil
}

func (s *PostgresPersonStore) Insert(ctx context.Context, p *domain.Person) error {
	if p == nil {
		return domain.ErrNilPerson
	}

	q := psql.Insert(
		im.Into(s.table, "name", "surname", "birth_date", "age", "insert_timestamp", "update_timestamp"),
		im.Values(
			psql.Arg(p.Name),
			psql.Arg(p.Surname),
			psql.Arg(birthDateArg(p.BirthDate)),
			psql.Arg(int32(p.Age)),
			psql.Arg(p.InsertTimestamp),
			psql.Arg(p.UpdateTimestamp),
		),
		im.Returning("id"),
	)

	var id int64
	err := s.pool.WithTx(ctx, func(ctx context.Context, tx db.Querier) error {
		var err error
		id, err = bob.One(ctx, tx, q, scan.SingleColumnMapper[int64])
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return wrapPersonError("insert", ErrNoRowID)
	}
	if err != nil {
		return wrapPersonError("insert", err)
	}

	p.ID = &id
	return nil
}

// Update never sets insert_timestamp. Zero affected rows is not an error.
func (s *PostgresPersonStore) Update(ctx context.Context, p *domain.Person) error {
	if p == nil {
		return domain.ErrNilPerson
	}
	if p.ID == nil {
		return wrapPersonError("update", errors.New("person has no id"))
	}

	q := psql.Update(
		um.Table(s.table),
		um.SetCol("name").To(psql.Arg(p.Name)),
		um.SetCol("surname").To(psql.Arg(p.Surname)),
		um.SetCol("birth_date").To(psql.Arg(birthDateArg(p.BirthDate))),
		um.SetCol("age").To(psql.Arg(int32(p.Age))),
		um.SetCol("update_timestamp").To(psql.Arg(p.UpdateTimestamp)),
		um.Where(psql.Quote("id").EQ(psql.Arg(*p.ID))),
	)

	err := s.pool.WithTx(ctx, func(ctx context.Context, tx db.Querier) error {
		_, err := bob.Exec(ctx, tx, q)
		return err
	})
	return wrapPersonError("update", err)
}

func (s *PostgresPersonStore) Upsert(ctx context.Context, p *domain.Person) error {
	if p == nil {
		return domain.ErrNilPerson
	}
	if p.IsNew() {
		return s.Insert(ctx, p)
	}
	return s.Update(ctx, p)
}

func (s *PostgresPersonStore) DeleteByID(ctx context.Context, id int64) error {
	q := psql.Delete(
		dm.From(s.table),
		dm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	err := s.pool.WithTx(ctx, func(ctx context.Context, tx db.Querier) error {
		_, err := bob.Exec(ctx, tx, q)
		return err
	})
	return wrapPersonError("delete", err)
}
