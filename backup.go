package trove

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/trovedb/trove/blobstore"
	"github.com/trovedb/trove/persistence"
)

// backupMarker is written last during Backup. Restore refuses backups
// without it, so an interrupted upload can never be restored as a partial
// file set.
const backupMarker = "COMMITTED"

// spaceFiles returns the on-disk file names of one space, relative to the
// store directory.
func spaceFiles(space FeatureSpace) []string {
	name := space.String()
	return []string{
		name + "_index.bin",
		name + "_texts.json",
		name + "_stats.json",
	}
}

// Backup copies every per-space file to the blob target under prefix.
// Each space is read-locked while its files are copied, so every space's
// files are mutually consistent in the backup.
func (s *Store) Backup(ctx context.Context, dst blobstore.Store, prefix string) error {
	for _, space := range Spaces() {
		st, err := s.space(space)
		if err != nil {
			return err
		}
		st.mu.RLock()
		err = s.backupSpace(ctx, dst, prefix, space)
		st.mu.RUnlock()
		if err != nil {
			return err
		}
	}

	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := dst.Put(ctx, path.Join(prefix, backupMarker), strings.NewReader(stamp)); err != nil {
		return fmt.Errorf("backup commit marker: %w", err)
	}
	return nil
}

func (s *Store) backupSpace(ctx context.Context, dst blobstore.Store, prefix string, space FeatureSpace) error {
	for _, name := range spaceFiles(space) {
		f, err := os.Open(filepath.Join(s.dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Empty spaces have no files yet.
				continue
			}
			return fmt.Errorf("backup %s: %w", name, err)
		}

		err = dst.Put(ctx, path.Join(prefix, name), f)
		f.Close()
		if err != nil {
			return fmt.Errorf("backup %s: %w", name, err)
		}
	}
	return nil
}

// Restore downloads a backup made with Backup into dir and opens the
// restored store. dir should be empty or absent; existing files with the
// same names are replaced.
func Restore(ctx context.Context, dir string, src blobstore.Store, prefix string, optFns ...Option) (*Store, error) {
	marker, err := src.Get(ctx, path.Join(prefix, backupMarker))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("restore: backup %q has no commit marker, refusing partial file set", prefix)
		}
		return nil, fmt.Errorf("restore commit marker: %w", err)
	}
	marker.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create restore dir: %w", err)
	}

	for _, space := range Spaces() {
		for _, name := range spaceFiles(space) {
			r, err := src.Get(ctx, path.Join(prefix, name))
			if err != nil {
				if errors.Is(err, blobstore.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("restore %s: %w", name, err)
			}

			data, err := io.ReadAll(r)
			r.Close()
			if err != nil {
				return nil, fmt.Errorf("restore %s: %w", name, err)
			}
			if err := persistence.WriteFileAtomic(filepath.Join(dir, name), data); err != nil {
				return nil, fmt.Errorf("restore %s: %w", name, err)
			}
		}
	}

	return Open(dir, optFns...)
}
