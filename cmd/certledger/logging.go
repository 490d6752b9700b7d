package main

import (
	"io"

	glog "github.com/goliatone/go-logger/glog"
)

// newLoggerProvider builds the root logger. Components get named children
// through GetLogger.
func newLoggerProvider(out io.Writer, debug bool) *glog.BaseLogger {
	level := "info"
	if debug {
		level = "debug"
	}
	return glog.NewLogger(
		glog.WithName(programName),
		glog.WithLevel(level),
		glog.WithAddSource(debug),
		glog.WithLoggerTypeJSON(),
		glog.WithWriter(out),
	)
}
