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

package shareexport

import (
	"archive/tar"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"
)

// BundleHashDomain tags bundle_hash, matching every other domain-separated
// digest in the pipeline.
const BundleHashDomain = "vifei-bundle-v0.1"

// BundleFile is one file to include in a bundle, named by its path
// relative to the bundle root.
type BundleFile struct {
	Name string
	Path string
}

// BuildBundle writes a POSIX-PAX tar archive of files, zstd-compressed at
// level 3, to out. Every entry uses a zero mtime and zero uid/gid and
// files are written in lexicographic name order, so byte-identical inputs
// always produce a byte-identical bundle. Returns bundle_hash, the BLAKE3
// digest of the compressed bytes.
func BuildBundle(out io.Writer, files []BundleFile) (bundleHash string, err error) {
	sorted := make([]BundleFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	hasher := blake3.New(32, nil)
	hasher.Write([]byte(BundleHashDomain))
	mw := io.MultiWriter(out, hasher)

	zw, err := zstd.NewWriter(mw, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(3)))
	if err != nil {
		return "", fmt.Errorf("shareexport: create zstd writer: %w", err)
	}

	tw := tar.NewWriter(zw)
	for _, f := range sorted {
		if err := addFile(tw, f); err != nil {
			tw.Close()
			zw.Close()
			return "", err
		}
	}
	if err := tw.Close(); err != nil {
		zw.Close()
		return "", fmt.Errorf("shareexport: close tar writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("shareexport: close zstd writer: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func addFile(tw *tar.Writer, f BundleFile) error {
	info, err := os.Stat(f.Path)
	if err != nil {
		return fmt.Errorf("shareexport: stat %q: %w", f.Path, err)
	}
	hdr := &tar.Header{
		Format:   tar.FormatPAX,
		Typeflag: tar.TypeReg,
		Name:     filepath.ToSlash(f.Name),
		Size:     info.Size(),
		Mode:     0o644,
		Uid:      0,
		Gid:      0,
		ModTime:  time.Unix(0, 0).UTC(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("shareexport: write header for %q: %w", f.Name, err)
	}
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("shareexport: open %q: %w", f.Path, err)
	}
	defer src.Close()
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("shareexport: copy %q into bundle: %w", f.Name, err)
	}
	return nil
}
