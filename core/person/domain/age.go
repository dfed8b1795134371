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

import "time"

// YearsBetween counts whole calendar years from `from` to `to`, comparing
// dates only. It is negative when to precedes from. A Feb 29 birthday is
// reached on Mar 1 in non-leap years.
func YearsBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()

	if ty < fy || (ty == fy && (tm < fm || (tm == fm && td < fd))) {
		return -YearsBetween(to, from)
	}

	years := ty - fy
	if tm < fm || (tm == fm && td < fd) {
		years--
	}
	return years
}
