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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildBundleIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("bravo"), 0o644))

	files := []BundleFile{{Name: "b.txt", Path: b}, {Name: "a.txt", Path: a}}

	var buf1, buf2 bytes.Buffer
	hash1, err := BuildBundle(&buf1, files)
	require.NoError(t, err)
	hash2, err := BuildBundle(&buf2, files)
	require.NoError(t, err)

	require.Equal(t, hash1, hash2)
	require.True(t, bytes.Equal(buf1.Bytes(), buf2.Bytes()))
}

func TestBuildBundleHashChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o644))

	var buf bytes.Buffer
	hash1, err := BuildBundle(&buf, []BundleFile{{Name: "a.txt", Path: a}})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(a, []byte("alpha-changed"), 0o644))
	var buf2 bytes.Buffer
	hash2, err := BuildBundle(&buf2, []BundleFile{{Name: "a.txt", Path: a}})
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2)
}
