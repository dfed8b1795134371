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
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"persons/modules/datecodec"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	pageList  = "list"
	pageInput = "input"
)

type (
	// Renderer executes the embedded page templates.
	Renderer struct {
		tmpl *template.Template
	}

	page struct {
		View
		Title         string
		Form          form
		FieldMessages map[string][]string
	}

	// form is the person as typed into the input page.
	form struct {
		ID        string
		Name      string
		Surname   string
		BirthDate string
	}
)

var funcs = template.FuncMap{
	"id":   formatID,
	"date": func(d *time.Time) string { return datecodec.Format(d) },
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("persons").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

func newPage(title string, v View) page {
	p := page{View: v, Title: title, FieldMessages: v.FieldErrors.ByField()}
	if v.Person != nil {
		p.Form = form{
			ID:        formatID(v.Person.ID),
			Name:      v.Person.Name,
			Surname:   v.Person.Surname,
			BirthDate: datecodec.Format(v.Person.BirthDate),
		}
	}
	return p
}

// Render writes the named page with status. Nothing is sent when the
// template fails.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p page) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, p); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}

func listPage(v View) page {
	return newPage("Persons", v)
}

func inputPage(v View) page {
	title := "Add person"
	if v.Person != nil && !v.Person.IsNew() {
		title = "Edit person"
	}
	return newPage(title, v)
}
