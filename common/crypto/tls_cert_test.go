package crypto

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndWriteKeyPair(t *testing.T) {
	cert, key, err := GenerateNodeCert("ledgerd", []string{"localhost", "127.0.0.1"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.IPAddresses[0].String())
	require.NoError(t, cert.VerifyHostname("localhost"))

	certFile, keyFile, err := WriteKeyPair(t.TempDir(), cert, key)
	require.NoError(t, err)

	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Certificate)
}
