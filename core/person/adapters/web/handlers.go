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
	"log/slog"
	"net/http"

	"persons/modules/db"
	"persons/modules/flash"
	"persons/modules/middleware/problem"
	"persons/modules/session"
)

const ListPath = "/persons"

// Handler maps HTTP requests onto PersonAction and renders the outcome.
type Handler struct {
	action   *PersonAction
	renderer *Renderer
	notices  flash.Store
	checks   []db.HealthManager
}

func NewHandler(action *PersonAction, renderer *Renderer, notices flash.Store, checks ...db.HealthManager) *Handler {
	return &Handler{action: action, renderer: renderer, notices: notices, checks: checks}
}

// slot scopes the flash store to the session of r.
func (h *Handler) slot(r *http.Request) flash.Slot {
	sid, _ := session.IDFromContext(r.Context())
	return flash.NewSlot(h.notices, sid)
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, ListPath, http.StatusSeeOther)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	v, err := h.action.List(r.Context(), h.slot(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pageList, listPage(v))
}

func (h *Handler) Input(w http.ResponseWriter, r *http.Request) {
	id, err := bindID("id", r.URL.Query().Get("id"))
	if err != nil {
		writeBindError(w, r, err)
		return
	}

	v, err := h.action.Input(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if v.Outcome == OutcomeError {
		h.render(w, r, http.StatusNotFound, pageList, listPage(v))
		return
	}
	h.render(w, r, http.StatusOK, pageInput, inputPage(v))
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		problem.Write(w, problem.BadRequest("malformed form body", problem.WithRequest(r)))
		return
	}
	p, err := bindPerson(r)
	if err != nil {
		writeBindError(w, r, err)
		return
	}

	v, err := h.action.Save(r.Context(), p, h.slot(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if v.Outcome == OutcomeInput {
		h.render(w, r, http.StatusUnprocessableEntity, pageInput, inputPage(v))
		return
	}
	http.Redirect(w, r, ListPath, http.StatusSeeOther)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		problem.Write(w, problem.BadRequest("malformed form body", problem.WithRequest(r)))
		return
	}
	id, err := bindID("id", r.FormValue("id"))
	if err != nil {
		writeBindError(w, r, err)
		return
	}

	if _, err := h.action.Delete(r.Context(), id, h.slot(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, ListPath, http.StatusSeeOther)
}

// Healthz answers 204 once every backing store responds.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if err := c.HealthCheck(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", slog.Any("error", err))
			problem.Write(w, problem.ServiceUnavailable("a backing store is unavailable", problem.WithRequest(r)))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	if err := h.renderer.Render(w, status, name, p); err != nil {
		h.fail(w, r, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed",
		slog.Any("error", err),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	problem.Write(w, problem.Internal("internal server error", problem.WithRequest(r)))
}

func writeBindError(w http.ResponseWriter, r *http.Request, err error) {
	var be *BindError
	if errors.As(err, &be) {
		problem.Write(w, be.Problem(problem.WithRequest(r)))
		return
	}
	problem.Write(w, problem.BadRequest(err.Error(), problem.WithRequest(r)))
}
