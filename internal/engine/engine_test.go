package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDial_RequiresScheme(t *testing.T) {
	_, err := Dial(context.Background(), "no-scheme-here", Credentials{}, ConnectionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scheme")
}

func TestDial_UnknownScheme(t *testing.T) {
	_, err := Dial(context.Background(), "nosuch:addr", Credentials{}, ConnectionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport scheme")
}

func TestRegister_NilDialerPanics(t *testing.T) {
	assert.Panics(t, func() { Register("nil-dialer", nil) })
}

func TestRegister_DuplicatePanics(t *testing.T) {
	dial := func(context.Context, string, Credentials, ConnectionOptions) (Connection, error) {
		return nil, nil
	}
	Register("dup-scheme", dial)
	assert.Panics(t, func() { Register("dup-scheme", dial) })
	assert.Contains(t, Schemes(), "dup-scheme")
}

func TestTransactionType_String(t *testing.T) {
	assert.Equal(t, "read", Read.String())
	assert.Equal(t, "write", Write.String())
	assert.Equal(t, "schema", Schema.String())
	assert.Contains(t, TransactionType(9).String(), "9")
}
