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

// Package datecodec converts calendar dates to and from their yyyy-MM-dd form.
package datecodec

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is yyyy-MM-dd in Go reference notation.
const Layout = "2006-01-02"

var ErrInvalidFormat = errors.New("invalid date format, expected yyyy-MM-dd")

// FormatError reports non-blank input that does not match Layout.
type FormatError struct {
	Text string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidFormat, e.Text)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrInvalidFormat }

// Parse returns nil for blank input: an empty field means "no value supplied".
func Parse(text string) (*time.Time, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	d, err := time.Parse(Layout, text)
	if err != nil {
		return nil, &FormatError{Text: text, Err: err}
	}
	return &d, nil
}

// Format renders an absent or zero date as the empty string.
func Format(d *time.Time) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format(Layout)
}
