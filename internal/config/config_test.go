package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
address: sqlite:/var/lib/kestrel
username: admin
password: secret
tls:
  enabled: true
  root_ca: /etc/kestrel/ca.pem
workers: 4
query:
  include_instance_types: true
  prefetch_size: 64
`))
	require.NoError(t, err)

	assert.Equal(t, "sqlite:/var/lib/kestrel", cfg.Address)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.True(t, cfg.TLS.Enabled)
	assert.Equal(t, "/etc/kestrel/ca.pem", cfg.TLS.RootCA)
	assert.Equal(t, 4, cfg.Workers)
	require.NotNil(t, cfg.Query.IncludeInstanceTypes)
	assert.True(t, *cfg.Query.IncludeInstanceTypes)
	require.NotNil(t, cfg.Query.PrefetchSize)
	assert.Equal(t, uint64(64), *cfg.Query.PrefetchSize)
}

func TestParse_EmptyFileGetsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_PartialConfigOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte("address: fake:remote\n"))
	require.NoError(t, err)
	assert.Equal(t, "fake:remote", cfg.Address)
	assert.Equal(t, 2, cfg.Workers, "omitted fields keep defaults")
}

func TestParse_RejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("address: sqlite:./data\nbogus_field: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestParse_RejectsTooFewWorkers(t *testing.T) {
	_, err := Parse([]byte("address: sqlite:./data\nworkers: 1\n"))
	require.Error(t, err)
}

func TestParse_RejectsEmptyAddress(t *testing.T) {
	_, err := Parse([]byte(`address: ""`))
	require.Error(t, err)
}

func TestParse_RejectsWrongType(t *testing.T) {
	_, err := Parse([]byte("address: sqlite:./data\nworkers: many\n"))
	require.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kestrel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("address: sqlite:./data\nworkers: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
