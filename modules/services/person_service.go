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

package services

import (
	"net/http"

	"persons/core/person/adapters/web"
	"persons/modules/server"
	"persons/modules/session"
)

var _ server.RegistrableService = (*PersonWebService)(nil)

// PersonWebService mounts the person pages. Session handling wraps each
// route so the mux pattern stays visible to the outer middlewares.
type PersonWebService struct {
	handler  *web.Handler
	sessions *session.Manager
}

func NewPersonWebService(h *web.Handler, sessions *session.Manager) *PersonWebService {
	return &PersonWebService{handler: h, sessions: sessions}
}

func (s *PersonWebService) Register(mux *http.ServeMux) {
	h := s.handler
	mux.HandleFunc("GET /{$}", h.Root)
	mux.Handle("GET /persons", s.sessions.Wrap(h.List))
	mux.Handle("GET /persons/input", s.sessions.Wrap(h.Input))
	mux.Handle("POST /persons/save", s.sessions.Wrap(h.Save))
	mux.Handle("POST /persons/delete", s.sessions.Wrap(h.Delete))
	mux.HandleFunc("GET /healthz", h.Healthz)
}

func (s *PersonWebService) Middlewares() []func(http.Handler) http.Handler {
	return nil
}
