// Copyright 2026 The Vifei Authors
// This file is part of Vifei.
//
// Vifei is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Vifei is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Vifei. If not, see <http://www.gnu.org/licenses/>.

// Package blobstore is the content-addressed store for oversize payloads.
// Writes stream through an incremental BLAKE3 hasher into a temp file,
// fsync, then rename into place under a two-character shard directory -
// grounded on the teacher's atomic-write idiom (temp file in the same
// directory as the target, fsync, rename).
package blobstore

import (
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

// MaxBlobSize is the largest blob the store accepts without an explicit
// override from the caller (export refuses above this unless overridden).
const MaxBlobSize = 50 * 1024 * 1024

// Store is a directory-backed, content-addressed blob store.
type Store struct {
	root        string
	verifyReads bool
}

// New returns a Store rooted at dir (typically "<data_dir>/blobs"). dir is
// created if it does not exist. verifyReads, when true, re-hashes blob
// content on every Read call; off by default for latency per spec's open
// question, forced on by the stress harness.
func New(dir string, verifyReads bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root %q: %w", dir, err)
	}
	return &Store{root: dir, verifyReads: verifyReads}, nil
}

// shardPath returns blobs/{hex[0:2]}/{hex}.
func (s *Store) shardPath(digestHex string) (dir, path string) {
	shard := digestHex[:2]
	dir = filepath.Join(s.root, shard)
	path = filepath.Join(dir, digestHex)
	return
}

// Put streams r into the store, returning the lowercase hex BLAKE3 digest of
// the bytes written. If a blob with the resulting digest already exists and
// its size matches, the write is a no-op (idempotent second write).
func (s *Store) Put(r io.Reader) (digestHex string, size int64, err error) {
	hasher := blake3.New(32, nil)
	tmp, err := os.CreateTemp(s.root, "blob-*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("blobstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	n, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("blobstore: stream write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("blobstore: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("blobstore: close temp file: %w", err)
	}

	digestHex = fmt.Sprintf("%x", hasher.Sum(nil))
	shardDir, finalPath := s.shardPath(digestHex)

	if fi, statErr := os.Stat(finalPath); statErr == nil {
		if fi.Size() == n {
			return digestHex, n, nil // idempotent: identical content already present
		}
	}

	firstWriteIntoShard := false
	if _, err := os.Stat(shardDir); os.IsNotExist(err) {
		firstWriteIntoShard = true
		if err := os.MkdirAll(shardDir, 0o755); err != nil {
			return "", 0, fmt.Errorf("blobstore: create shard dir %q: %w", shardDir, err)
		}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", 0, fmt.Errorf("blobstore: rename into place: %w", err)
	}

	if firstWriteIntoShard {
		if err := fsyncDir(shardDir); err != nil {
			return "", 0, fmt.Errorf("blobstore: fsync shard dir %q: %w", shardDir, err)
		}
	}

	return digestHex, n, nil
}

// Get opens the blob identified by digestHex for reading. If verifyReads is
// set, the returned ReadCloser re-hashes content as it is consumed and
// reports a mismatch as an error from the final Read/Close.
func (s *Store) Get(digestHex string) (io.ReadCloser, error) {
	_, path := s.shardPath(digestHex)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open blob %s: %w", digestHex, err)
	}
	if !s.verifyReads {
		return f, nil
	}
	return &verifyingReader{f: f, want: digestHex, hasher: blake3.New(32, nil)}, nil
}

// Has reports whether a blob with the given digest exists.
func (s *Store) Has(digestHex string) bool {
	_, path := s.shardPath(digestHex)
	_, err := os.Stat(path)
	return err == nil
}

// Path returns the on-disk path a blob would occupy, without requiring it
// to exist - used by the scanner and bundler to address blobs directly.
func (s *Store) Path(digestHex string) string {
	_, path := s.shardPath(digestHex)
	return path
}

type verifyingReader struct {
	f      *os.File
	want   string
	hasher hash.Hash
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.f.Read(p)
	if n > 0 {
		v.hasher.Write(p[:n])
	}
	if err == io.EOF {
		got := fmt.Sprintf("%x", v.hasher.Sum(nil))
		if got != v.want {
			return n, fmt.Errorf("blobstore: integrity check failed: want %s got %s", v.want, got)
		}
	}
	return n, err
}

func (v *verifyingReader) Close() error {
	return v.f.Close()
}

func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
