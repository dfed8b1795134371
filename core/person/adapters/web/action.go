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
	"context"
	"log/slog"
	"strings"

	"persons/core/person/domain"
	"persons/modules/flash"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeInput   Outcome = "INPUT"
	OutcomeError   Outcome = "ERROR"
)

const (
	MsgSaved    = "Person saved successfully."
	MsgRemoved  = "Person removed successfully."
	MsgNotFound = "Person not found."
)

// View is what a flow hands to the renderer.
type View struct {
	Outcome     Outcome
	Persons     []domain.Person
	Person      *domain.Person
	Messages    []string
	Errors      []string
	FieldErrors domain.FieldErrors
}

// PersonAction runs the person page flows on top of the application.
type PersonAction struct {
	app *domain.Application
}

func NewPersonAction(app *domain.Application) *PersonAction {
	return &PersonAction{app: app}
}

// List surfaces the pending notice, if any, and loads every person.
func (a *PersonAction) List(ctx context.Context, pending flash.Taker) (View, error) {
	var v View
	if pending != nil {
		msg, err := pending.Take(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to take flash notice", slog.Any("error", err))
		} else if strings.TrimSpace(msg) != "" {
			v.Messages = append(v.Messages, msg)
		}
	}

	persons, err := a.app.FindAll(ctx)
	if err != nil {
		return View{}, err
	}
	v.Persons = persons
	v.Outcome = OutcomeSuccess
	return v, nil
}

// Input prepares the form. An unknown id falls back to the list with an error.
func (a *PersonAction) Input(ctx context.Context, id *int64) (View, error) {
	if id == nil {
		return View{Outcome: OutcomeInput, Person: &domain.Person{}}, nil
	}

	p, err := a.app.FindByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	if p != nil {
		return View{Outcome: OutcomeInput, Person: p}, nil
	}

	persons, err := a.app.FindAll(ctx)
	if err != nil {
		return View{}, err
	}
	return View{
		Outcome: OutcomeError,
		Persons: persons,
		Errors:  []string{MsgNotFound},
	}, nil
}

// Save validates p and persists it. Invalid input goes back to the form
// with nothing written.
func (a *PersonAction) Save(ctx context.Context, p *domain.Person, notices flash.Putter) (View, error) {
	if p == nil {
		p = &domain.Person{}
	}
	if errs := domain.Validate(p); len(errs) > 0 {
		return View{Outcome: OutcomeInput, Person: p, FieldErrors: errs}, nil
	}

	if err := a.app.Save(ctx, p); err != nil {
		return View{}, err
	}
	queue(ctx, notices, MsgSaved)
	return View{Outcome: OutcomeSuccess, Person: p}, nil
}

// Delete removes the person, if any, and queues the removal notice either way.
func (a *PersonAction) Delete(ctx context.Context, id *int64, notices flash.Putter) (View, error) {
	if err := a.app.Delete(ctx, id); err != nil {
		return View{}, err
	}
	queue(ctx, notices, MsgRemoved)
	return View{Outcome: OutcomeSuccess}, nil
}

// queue puts msg; the write already committed, so a failure only costs the notice.
func queue(ctx context.Context, notices flash.Putter, msg string) {
	if notices == nil {
		return
	}
	if err := notices.Put(ctx, msg); err != nil {
		slog.WarnContext(ctx, "failed to queue flash notice", slog.Any("error", err))
	}
}
