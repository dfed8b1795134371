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

// Package memory keeps persons in process memory. It backs the web tests and
// local runs without a database.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"persons/core/person/domain"
)

var _ domain.PersonStore = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	rows   map[int64]domain.Person
	nextID int64
}

func NewStore() *Store {
	return &Store{rows: make(map[int64]domain.Person), nextID: 1}
}

func (s *Store) FindAll(_ context.Context) ([]domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Person, 0, len(s.rows))
	for _, p := range s.rows {
		out = append(out, clonePerson(p))
	}
	slices.SortFunc(out, func(a, b domain.Person) int {
		return cmp.Compare(*a.ID, *b.ID)
	})
	return out, nil
}

func (s *Store) FindByID(_ context.Context, id int64) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	c := clonePerson(p)
	return &c, nil
}

func (s *Store) Insert(_ context.Context, p *domain.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	p.ID = &id
	s.rows[id] = clonePerson(*p)
	return nil
}

func (s *Store) Update(_ context.Context, p *domain.Person) error {
	if p.ID == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rows[*p.ID]
	if !ok {
		return nil
	}
	next := clonePerson(*p)
	next.InsertTimestamp = cur.InsertTimestamp
	s.rows[*p.ID] = next
	return nil
}

func (s *Store) Upsert(ctx context.Context, p *domain.Person) error {
	if p.IsNew() {
		return s.Insert(ctx, p)
	}
	return s.Update(ctx, p)
}

func (s *Store) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, id)
	return nil
}

// clonePerson detaches the pointer fields so callers cannot mutate stored rows.
func clonePerson(p domain.Person) domain.Person {
	if p.ID != nil {
		id := *p.ID
		p.ID = &id
	}
	if p.BirthDate != nil {
		bd := *p.BirthDate
		p.BirthDate = &bd
	}
	return p
}
