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

// Package problem writes RFC 7807 problem documents.
package problem

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

const ContentType = "application/problem+json"

type (
	Problem struct {
		Type          string         `json:"type"`
		Title         string         `json:"title"`
		Status        int            `json:"status"`
		Detail        string         `json:"detail,omitempty"`
		Instance      string         `json:"instance,omitempty"`
		TraceID       string         `json:"traceId,omitempty"`
		InvalidParams []InvalidParam `json:"invalidParams,omitempty"`

		// Extensions are merged into the top-level object. They never
		// replace a standard member.
		Extensions map[string]any `json:"-"`
	}

	InvalidParam struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	}

	Option func(*Problem)
)

// New builds a problem for status. The title is the status text.
func New(status int, detail string, opts ...Option) *Problem {
	title := http.StatusText(status)
	if title == "" {
		title = "Unknown Error"
	}
	p := &Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func BadRequest(detail string, opts ...Option) *Problem {
	return New(http.StatusBadRequest, detail, opts...)
}

func MethodNotAllowed(detail string, opts ...Option) *Problem {
	return New(http.StatusMethodNotAllowed, detail, opts...)
}

func TooManyRequests(detail string, opts ...Option) *Problem {
	return New(http.StatusTooManyRequests, detail, opts...)
}

func Internal(detail string, opts ...Option) *Problem {
	return New(http.StatusInternalServerError, detail, opts...)
}

func ServiceUnavailable(detail string, opts ...Option) *Problem {
	return New(http.StatusServiceUnavailable, detail, opts...)
}

// WithRequest sets the instance to the request path and, when the request
// carries a sampled span, the trace id.
func WithRequest(r *http.Request) Option {
	return func(p *Problem) {
		p.Instance = r.URL.Path
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			p.TraceID = sc.TraceID().String()
		}
	}
}

func WithInvalidParam(name, reason string) Option {
	return func(p *Problem) {
		p.InvalidParams = append(p.InvalidParams, InvalidParam{Name: name, Reason: reason})
	}
}

func WithExtension(key string, value any) Option {
	return func(p *Problem) {
		if p.Extensions == nil {
			p.Extensions = map[string]any{}
		}
		p.Extensions[key] = value
	}
}

// Write sends p with its status. A nil p is sent as a bare 500.
func Write(w http.ResponseWriter, p *Problem) {
	if p == nil {
		p = Internal("")
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func (p Problem) MarshalJSON() ([]byte, error) {
	type plain Problem
	base, err := json.Marshal(plain(p))
	if err != nil || len(p.Extensions) == 0 {
		return base, err
	}

	merged := make(map[string]json.RawMessage, len(p.Extensions))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.Extensions {
		if _, taken := merged[k]; taken {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}
