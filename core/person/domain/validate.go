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
	"strings"
)

// Form field keys, also used as HTML input names.
const (
	FieldID        = "person.id"
	FieldName      = "person.name"
	FieldSurname   = "person.surname"
	FieldBirthDate = "person.birthDate"
)

type (
	FieldError struct {
		Field   string
		Message string
	}

	// FieldErrors keeps the order in which the checks ran.
	FieldErrors []FieldError
)

func (fe FieldErrors) Has(field string) bool {
	for _, e := range fe {
		if e.Field == field {
			return true
		}
	}
	return false
}

// ByField returns the messages for each field, for rendering next to inputs.
func (fe FieldErrors) ByField() map[string][]string {
	out := make(map[string][]string, len(fe))
	for _, e := range fe {
		out[e.Field] = append(out[e.Field], e.Message)
	}
	return out
}

// Validate runs every check and reports all failures. A nil person fails
// all of them.
func Validate(p *Person) FieldErrors {
	if p == nil {
		p = &Person{}
	}

	var errs FieldErrors
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, FieldError{Field: FieldName, Message: "Name is required"})
	}
	if strings.TrimSpace(p.Surname) == "" {
		errs = append(errs, FieldError{Field: FieldSurname, Message: "Surname is required"})
	}
	if p.BirthDate == nil {
		errs = append(errs, FieldError{Field: FieldBirthDate, Message: "Birth date is required"})
	}
	return errs
}
