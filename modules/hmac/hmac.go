// Copyright 2025 Nguyen Nhat Nguyen
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

package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// MinKeyLen is the shortest secret NewHMACSigner accepts.
const MinKeyLen = 16

var (
	ErrMissingKey   = errors.New("missing hmac key")
	ErrShortKey     = errors.New("hmac key shorter than 16 bytes")
	ErrInvalidToken = errors.New("invalid token")
)

// HMACSigner produces URL and cookie safe tokens of the form
// base64url(payload) "." base64url(HMAC-SHA256(base64url(payload))).
type HMACSigner struct {
	key []byte
}

func NewHMACSigner(secKey []byte) (*HMACSigner, error) {
	switch {
	case len(secKey) == 0:
		return nil, ErrMissingKey
	case len(secKey) < MinKeyLen:
		return nil, ErrShortKey
	}
	return &HMACSigner{key: append([]byte(nil), secKey...)}, nil
}

func (h *HMACSigner) mac(payloadB64 string) []byte {
	m := hmac.New(sha256.New, h.key)
	_, _ = m.Write([]byte(payloadB64))
	return m.Sum(nil)
}

func (h *HMACSigner) Sign(payload []byte) (string, error) {
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	sigB64 := base64.RawURLEncoding.EncodeToString(h.mac(payloadB64))
	return payloadB64 + "." + sigB64, nil
}

// Verify returns the payload of a token produced by Sign with the same key.
func (h *HMACSigner) Verify(token string) ([]byte, error) {
	payloadB64, sigB64, ok := strings.Cut(token, ".")
	if !ok || strings.Contains(sigB64, ".") {
		return nil, ErrInvalidToken
	}

	got, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal(h.mac(payloadB64), got) {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return payload, nil
}
