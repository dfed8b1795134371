package domain

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// fakeStore records every call and keeps rows in memory.
type fakeStore struct {
	mu     sync.Mutex
	rows   map[int64]Person
	nextID int64
	calls  []string
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[int64]Person{}, nextID: 1}
}

func (f *fakeStore) record(op string) error {
	f.calls = append(f.calls, op)
	return f.err
}

func (f *fakeStore) FindAll(context.Context) ([]Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FindAll"); err != nil {
		return nil, err
	}
	out := make([]Person, 0, len(f.rows))
	for _, p := range f.rows {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Person) int { return cmp.Compare(*a.ID, *b.ID) })
	return out, nil
}

func (f *fakeStore) FindByID(_ context.Context, id int64) (*Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FindByID"); err != nil {
		return nil, err
	}
	p, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) Insert(_ context.Context, p *Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Insert"); err != nil {
		return err
	}
	id := f.nextID
	f.nextID++
	p.ID = &id
	f.rows[id] = *p
	return nil
}

func (f *fakeStore) Update(_ context.Context, p *Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Update"); err != nil {
		return err
	}
	if prev, ok := f.rows[*p.ID]; ok {
		row := *p
		row.InsertTimestamp = prev.InsertTimestamp
		f.rows[*p.ID] = row
	}
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, p *Person) error {
	if p.ID == nil {
		return f.Insert(ctx, p)
	}
	return f.Update(ctx, p)
}

func (f *fakeStore) DeleteByID(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteByID"); err != nil {
		return err
	}
	delete(f.rows, id)
	return nil
}
