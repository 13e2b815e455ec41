// Package proofs stores uploaded payment proof files on local disk.
package proofs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// URLPrefix is the public path under which stored proofs are served
const URLPrefix = "/uploads/payment-proofs/"

var allowedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

// Store writes proofs to <root>/payment-proofs
type Store struct {
	dir     string
	maxSize int64
	log     *zap.SugaredLogger
}

func NewStore(root string, maxSize int64) (*Store, error) {
	dir := filepath.Join(root, "payment-proofs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create proof dir %s", dir)
	}
	return &Store{dir: dir, maxSize: maxSize, log: logger.Named("proofs")}, nil
}

// Save stores the content under a fresh name keeping the original
// extension, and returns its public URL
func (s *Store) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ledgererr.Validation("unsupported payment proof type %q", ext)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create proof file %s", path)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxSize {
		err = ledgererr.Validation("payment proof exceeds %d bytes", s.maxSize)
	}
	if err != nil {
		os.Remove(path)
		if ledgererr.Is(err, ledgererr.KindValidation) {
			return "", err
		}
		return "", errors.Wrapf(err, "failed to write proof file %s", path)
	}

	s.log.Debugw("Stored payment proof", "file", name, "bytes", n)
	return URLPrefix + name, nil
}

// Open returns the stored proof behind a URL produced by Save
func (s *Store) Open(url string) (io.ReadCloser, error) {
	name := strings.TrimPrefix(url, URLPrefix)
	if name == url || name == "" || strings.ContainsAny(name, `/\`) {
		return nil, ledgererr.Validation("invalid payment proof url %q", url)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil, ledgererr.NotFound("payment proof %s not found", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open payment proof")
	}
	return f, nil
}
