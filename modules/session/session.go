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

// Package session keeps an anonymous session id in a signed cookie.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"persons/modules/hmac"
	"persons/modules/middleware/problem"

	"github.com/gofrs/uuid/v5"
)

const DefaultCookieName = "person_sid"

type SessionConfig struct {
	Secret       string        `env:"SECRET,notEmpty"`
	CookieName   string        `env:"COOKIE_NAME" envDefault:"person_sid"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	MaxAge       time.Duration `env:"MAX_AGE" envDefault:"24h"`
}

type ctxKey struct{}

// Manager issues and verifies session cookies whose value is
// hmac.Sign(uuidv7 bytes).
type Manager struct {
	signer *hmac.HMACSigner
	cfg    SessionConfig
	newID  func() (uuid.UUID, error)
}

func NewManager(cfg SessionConfig) (*Manager, error) {
	signer, err := hmac.NewHMACSigner([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Manager{signer: signer, cfg: cfg, newID: uuid.NewV7}, nil
}

// IDFromContext returns the session id stored by Manager.Middleware.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// parse returns the id carried by a valid cookie.
func (m *Manager) parse(r *http.Request) (uuid.UUID, bool) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return uuid.Nil, false
	}
	payload, err := m.signer.Verify(c.Value)
	if err != nil {
		slog.DebugContext(r.Context(), "discarding session cookie", slog.Any("error", err))
		return uuid.Nil, false
	}
	id, err := uuid.FromBytes(payload)
	if err != nil || id.IsNil() {
		return uuid.Nil, false
	}
	return id, true
}

func (m *Manager) cookie(id uuid.UUID) (*http.Cookie, error) {
	value, err := m.signer.Sign(id.Bytes())
	if err != nil {
		return nil, err
	}
	c := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.cfg.MaxAge > 0 {
		c.MaxAge = int(m.cfg.MaxAge / time.Second)
	}
	return c, nil
}

// Middleware makes sure every request carries a session id, minting one and
// setting the cookie when the request has none or a tampered one.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := m.parse(r)
		if !ok {
			var err error
			id, err = m.newID()
			if err == nil {
				var c *http.Cookie
				if c, err = m.cookie(id); err == nil {
					http.SetCookie(w, c)
				}
			}
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to start session", slog.Any("error", err))
				problem.Write(w, problem.Internal("failed to start session", problem.WithRequest(r)))
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id.String())))
	})
}

// Wrap is Middleware for a single handler func.
func (m *Manager) Wrap(h http.HandlerFunc) http.Handler {
	return m.Middleware(h)
}
