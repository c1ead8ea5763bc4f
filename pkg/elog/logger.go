// Package elog provides the logging facade used throughout the ext2 engine.
// It mirrors the teacher repository's split between a small interface that
// callers depend on and a logrus-backed implementation that formats output
// for a terminal.
package elog

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger is the minimal logging surface every engine component depends on.
// A nil Logger is valid everywhere in this package's callers and behaves as
// a no-op (see Nop).
type Logger interface {
	Debugf(format string, x ...interface{})
	Errorf(format string, x ...interface{})
	Infof(format string, x ...interface{})
	Warnf(format string, x ...interface{})
	IsDebugEnabled() bool
}

// CLI is a terminal logger backed by logrus, colorized with fatih/color the
// same way the teacher's pkg/elog.CLI formats entries.
type CLI struct {
	DisableColors bool
	IsDebug       bool
	IsVerbose     bool
}

// Debugf executes logrus.Tracef only if debug logging is enabled.
func (log *CLI) Debugf(format string, x ...interface{}) {
	if log.IsDebug {
		logrus.Tracef(format, x...)
	}
}

// Errorf executes logrus.Errorf.
func (log *CLI) Errorf(format string, x ...interface{}) {
	logrus.Errorf(format, x...)
}

// Infof executes logrus.Debugf only if verbose logging is enabled.
func (log *CLI) Infof(format string, x ...interface{}) {
	if log.IsVerbose {
		logrus.Debugf(format, x...)
	}
}

// Warnf executes logrus.Warnf.
func (log *CLI) Warnf(format string, x ...interface{}) {
	logrus.Warnf(format, x...)
}

// IsDebugEnabled returns whether DebugLevel logging is enabled.
func (log *CLI) IsDebugEnabled() bool {
	return logrus.IsLevelEnabled(logrus.DebugLevel)
}

// Format implements logrus.Formatter.
func (log *CLI) Format(entry *logrus.Entry) ([]byte, error) {

	faint := color.New(color.Faint).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	x := entry.Message
	if !log.DisableColors {
		switch entry.Level {
		case logrus.TraceLevel:
			x = fmt.Sprintf("%s\n", faint(x))
		case logrus.DebugLevel:
			x = fmt.Sprintf("%s\n", blue(x))
		case logrus.WarnLevel:
			x = fmt.Sprintf("%s\n", yellow(x))
		case logrus.ErrorLevel:
			x = fmt.Sprintf("%s\n", red(x))
		default:
			x = fmt.Sprintf("%s\n", x)
		}
	} else {
		x = fmt.Sprintf("%s\n", x)
	}

	return []byte(x), nil
}

type nop struct{}

// Debugf is a no-op.
func (nop) Debugf(format string, x ...interface{}) {}

// Errorf is a no-op.
func (nop) Errorf(format string, x ...interface{}) {}

// Infof is a no-op.
func (nop) Infof(format string, x ...interface{}) {}

// Warnf is a no-op.
func (nop) Warnf(format string, x ...interface{}) {}

// IsDebugEnabled always returns false for the no-op logger.
func (nop) IsDebugEnabled() bool { return false }

// Nop is a Logger that discards everything. Used wherever a caller passes a
// nil Logger into the engine.
var Nop Logger = nop{}

// Of returns log if non-nil, otherwise Nop. Engine packages call this once
// at the top of a constructor so the rest of the code never has to check
// for nil.
func Of(log Logger) Logger {
	if log == nil {
		return Nop
	}
	return log
}
