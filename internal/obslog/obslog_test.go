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

package obslog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuan-cloud/vifei-suite-public/internal/config"
)

func TestNewBuildsLogger(t *testing.T) {
	cfg := config.Logging{
		FilePath: filepath.Join(t.TempDir(), "vifei.log"),
		Level:    "info",
	}
	logger, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync()

	FailureMode(logger, "FM-APPEND-FAIL", "append stall")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.Logging{Level: "not-a-level"})
	require.Error(t, err)
}
