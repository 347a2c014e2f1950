package utils_test

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tz-search/internal/config"
	"tz-search/internal/utils"
)

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")

	require.NoError(t, utils.EnsureSelfSignedCert(cert, key, "tz-search.local"))
	pair, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Certificate)

	before, err := os.ReadFile(cert)
	require.NoError(t, err)
	require.NoError(t, utils.EnsureSelfSignedCert(cert, key, "other"))
	after, err := os.ReadFile(cert)
	require.NoError(t, err)
	assert.Equal(t, before, after, "existing pair is kept")
}

func TestOpenRedis_Disabled(t *testing.T) {
	assert.Nil(t, utils.OpenRedis(config.RedisConfig{Enabled: false, Host: "localhost", Port: 6379}))
	rc := utils.OpenRedis(config.RedisConfig{Enabled: true, Host: "localhost", Port: 6380})
	require.NotNil(t, rc)
	assert.Equal(t, "localhost:6380", rc.Options().Addr)
	_ = rc.Close()
}
