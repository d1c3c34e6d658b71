// Copyright 2024 The netharness Authors
// This file is part of netharness.
//
// netharness is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// netharness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with netharness. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/netharness/netharness/log"
)

// logFile is the rotated log output, nil unless --log.file is given.
var logFile *lumberjack.Logger

// setupLogging installs the root log handler according to the logging flags.
func setupLogging(ctx *cli.Context) error {
	output := io.Writer(os.Stderr)
	usecolor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	if ctx.Bool(noColorFlag.Name) {
		usecolor = false
	}
	if usecolor {
		output = colorable.NewColorableStderr()
	}
	handler := log.StreamHandler(output, log.TerminalFormat(usecolor))

	if file := ctx.String(logFileFlag.Name); file != "" {
		logFile = &lumberjack.Logger{
			Filename: file,
			MaxSize:  ctx.Int(logMaxSizeFlag.Name),
		}
		handler = log.MultiHandler(handler, log.StreamHandler(logFile, log.LogfmtFormat()))
	}
	log.PrintOrigins(ctx.Bool(logOriginsFlag.Name))

	lvl := log.Lvl(ctx.Int(verbosityFlag.Name))
	if lvl < log.LvlCrit {
		lvl = log.LvlCrit
	}
	if lvl > log.LvlTrace {
		lvl = log.LvlTrace
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, handler))
	return nil
}

func closeLogging(ctx *cli.Context) error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
