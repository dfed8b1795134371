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

package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"persons/core/person/domain"
	"persons/modules/datecodec"
	"persons/modules/middleware/problem"
)

var ErrInvalidID = errors.New("invalid id, expected an integer")

// BindError is a request parameter that could not be converted.
type BindError struct {
	Field string
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Field, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Problem renders e as a 400 document naming the field.
func (e *BindError) Problem(opts ...problem.Option) *problem.Problem {
	reason := ErrInvalidID.Error()
	if errors.Is(e.Err, datecodec.ErrInvalidFormat) {
		reason = datecodec.ErrInvalidFormat.Error()
	}
	opts = append([]problem.Option{problem.WithInvalidParam(e.Field, reason)}, opts...)
	return problem.BadRequest("request parameters could not be bound", opts...)
}

// bindID reads an optional integer. Blank means absent.
func bindID(field, raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &BindError{Field: field, Err: fmt.Errorf("%w: %v", ErrInvalidID, err)}
	}
	return &id, nil
}

// bindPerson reads the person.* form fields. Age and timestamps are never
// taken from the request.
func bindPerson(r *http.Request) (*domain.Person, error) {
	id, err := bindID(domain.FieldID, r.PostFormValue(domain.FieldID))
	if err != nil {
		return nil, err
	}
	bd, err := datecodec.Parse(r.PostFormValue(domain.FieldBirthDate))
	if err != nil {
		return nil, &BindError{Field: domain.FieldBirthDate, Err: err}
	}
	return &domain.Person{
		ID:        id,
		Name:      r.PostFormValue(domain.FieldName),
		Surname:   r.PostFormValue(domain.FieldSurname),
		BirthDate: bd,
	}, nil
}
