package tls

import (
	cryptotls "crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	hosts := []string{"localhost", "127.0.0.1"}

	created, err := EnsureCertificate(certPath, keyPath, hosts)
	require.NoError(t, err)
	assert.True(t, created)

	_, err = cryptotls.LoadX509KeyPair(certPath, keyPath)
	require.NoError(t, err)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	created, err = EnsureCertificate(certPath, keyPath, hosts)
	require.NoError(t, err)
	assert.False(t, created, "valid certificate is reused")

	created, err = EnsureCertificate(certPath, keyPath, []string{"risk.internal"})
	require.NoError(t, err)
	assert.True(t, created, "new hostname forces regeneration")
}

func TestEnsureCertificate_ReplacesExpired(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	require.NoError(t, GenerateSelfSignedCert(certPath, keyPath, []string{"localhost"}, time.Second))

	// NotBefore is backdated by a minute, so a one second validity is already expired.
	created, err := EnsureCertificate(certPath, keyPath, []string{"localhost"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestEnsureCertificate_RequiresHost(t *testing.T) {
	_, err := EnsureCertificate("c.pem", "k.pem", nil)
	assert.Error(t, err)
}
