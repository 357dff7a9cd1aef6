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

// Package obslog is the operator-facing structured logger. It is strictly
// diagnostics: nothing it writes is truth, and nothing in the event log
// pipeline reads it back.
package obslog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/yuan-cloud/vifei-suite-public/internal/config"
)

// New builds a zap.Logger writing JSON lines to a rotated file per cfg, plus
// a human-readable console encoder on stderr for interactive use.
func New(cfg config.Logging) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("obslog: parse log level %q: %w", cfg.Level, err)
	}

	var cores []zapcore.Core
	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level))
	}

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoder := zapcore.NewConsoleEncoder(consoleConfig)
	cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level))

	core := zapcore.NewTee(cores...)
	return zap.New(core), nil
}

// FailureMode logs a structured entry tagged with an FM-* code, matching
// §4.9's taxonomy: every component that can enter a failure mode logs one
// of these rather than a bare error string.
func FailureMode(logger *zap.Logger, code, detail string, fields ...zap.Field) {
	all := append([]zap.Field{zap.String("fm_code", code), zap.String("detail", detail)}, fields...)
	logger.Error("failure mode", all...)
}
