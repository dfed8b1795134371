package hmac

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	s, err := NewHMACSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)

	token, err := s.Sign([]byte("0199e3c4-2b1a-7c3d-9e8f-001122334455"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(token, "."))

	payload, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "0199e3c4-2b1a-7c3d-9e8f-001122334455", string(payload))
}

func TestVerify_Rejects(t *testing.T) {
	s, err := NewHMACSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)
	other, err := NewHMACSigner([]byte("fedcba9876543210"))
	require.NoError(t, err)

	token, _ := s.Sign([]byte("payload"))
	forged, _ := other.Sign([]byte("payload"))
	payload, sig, _ := strings.Cut(token, ".")

	for name, tok := range map[string]string{
		"empty":        "",
		"no separator": payload,
		"extra part":   token + ".x",
		"wrong key":    forged,
		"bad base64":   payload + ".!!!",
		"swapped":      sig + "." + payload,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewHMACSigner_KeyChecks(t *testing.T) {
	_, err := NewHMACSigner(nil)
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = NewHMACSigner([]byte("short"))
	assert.ErrorIs(t, err, ErrShortKey)
}
