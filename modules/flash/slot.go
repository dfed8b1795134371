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

package flash

import "context"

var (
	_ Taker  = Slot{}
	_ Putter = Slot{}
)

// Slot binds a Store to one session id.
type Slot struct {
	store Store
	sid   string
}

func NewSlot(store Store, sid string) Slot {
	return Slot{store: store, sid: sid}
}

func (s Slot) SessionID() string {
	return s.sid
}

func (s Slot) Take(ctx context.Context) (string, error) {
	return s.store.Take(ctx, s.sid)
}

func (s Slot) Put(ctx context.Context, msg string) error {
	return s.store.Put(ctx, s.sid, msg)
}
