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

package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

type KeyStrategyId string

const RemoteIpKeyStrategy KeyStrategyId = "remote_ip"

var ErrInvalidRule = errors.New("ratelimit parse policy: limit and window must be positive")

type (
	// Config is loaded from RATE_LIMIT_* variables. With no variables set
	// every POST is limited per remote IP and other requests pass.
	Config struct {
		Routes              []Route      `envPrefix:"ROUTE_"`
		DefaultPolicy       EndpointRule `envPrefix:"DEFAULT_"`
		AllowIfNoMatch      bool         `env:"ALLOW_IF_NO_MATCH" envDefault:"true"`
		AllowIfNoIdentifier bool         `env:"ALLOW_IF_NO_ID"`

		// TrustForwarded keys remote_ip on X-Forwarded-For. Enable only
		// behind a proxy that overwrites the header.
		TrustForwarded bool `env:"TRUST_FORWARDED"`
	}

	Route struct {
		// Pattern is the http.ServeMux pattern the route was registered with,
		// e.g. "POST /persons/save".
		Pattern       string         `env:"PATTERN"`
		EndpointRules []EndpointRule `envPrefix:"POLICY_"`
	}

	EndpointRule struct {
		Method      string        `env:"METHOD" envDefault:"POST"`
		Limit       int64         `env:"LIMIT" envDefault:"60"`
		Window      time.Duration `env:"WINDOW" envDefault:"1m"`
		KeyStrategy KeyStrategyId `env:"KEY_STRATEGY" envDefault:"remote_ip"`
	}
)

func (r EndpointRule) validate() error {
	if r.Limit <= 0 || r.Window <= 0 {
		return fmt.Errorf("%w: limit=%d window=%s", ErrInvalidRule, r.Limit, r.Window)
	}
	return nil
}

// KeyStrategies returns the key functions cfg may refer to by name.
func (cfg *Config) KeyStrategies() map[KeyStrategyId]KeyFunc {
	remote := RemoteIpKeyFunc
	if cfg.TrustForwarded {
		remote = ForwardedIpKeyFunc
	}
	return map[KeyStrategyId]KeyFunc{
		RemoteIpKeyStrategy: remote,
	}
}
