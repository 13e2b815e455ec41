package proofs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	s, err := NewStore(t.TempDir(), 1024)
	require.NoError(t, err)

	url, err := s.Save(context.Background(), "receipt.PNG", strings.NewReader("image bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, URLPrefix))
	assert.True(t, strings.HasSuffix(url, ".png"))

	f, err := s.Open(url)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))
}

func TestSaveRejects(t *testing.T) {
	s, err := NewStore(t.TempDir(), 4)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "script.sh", strings.NewReader("x"))
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))

	_, err = s.Save(context.Background(), "big.pdf", strings.NewReader("too large"))
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, "a.pdf", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestOpenRejectsForeignPaths(t *testing.T) {
	s, err := NewStore(t.TempDir(), 4)
	require.NoError(t, err)

	_, err = s.Open("/etc/passwd")
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))
	_, err = s.Open(URLPrefix + "../secret")
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))
	_, err = s.Open(URLPrefix + "missing.png")
	assert.True(t, ledgererr.Is(err, ledgererr.KindNotFound))
}
