// Package xlog is the engine's one logging entry point. Core packages
// (numeric, alignpath, kmer, diagenv, ratemodel, profile, dp, recon)
// never import it -- they return errors and let the caller decide
// whether anything gets logged, the same silent-library posture this
// codebase's seq/fragbag/bow packages take. Only cmd/reconstruct-ancestors
// calls into xlog.
package xlog

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	logging "github.com/shenwei356/go-logging"
)

var log = logging.MustGetLogger("profalign")

var levelNames = map[string]logging.Level{
	"critical": logging.CRITICAL,
	"error":    logging.ERROR,
	"warning":  logging.WARNING,
	"notice":   logging.NOTICE,
	"info":     logging.INFO,
	"debug":    logging.DEBUG,
}

// Init installs a single stderr backend at the named level ("debug",
// "info", "notice", "warning", "error", or "critical"; unrecognised
// names fall back to "notice"). It colourises output only when stderr
// is a real terminal, the way this codebase's other CLI tools detect
// TTYs before handing out ANSI codes.
func Init(level string) {
	writer := stderrWriter()
	format := logging.MustStringFormatter(
		`%{time:15:04:05.000} %{level:.4s} %{message}`,
	)
	backend := logging.NewLogBackend(writer, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(formatted)

	lvl, ok := levelNames[level]
	if !ok {
		lvl = logging.NOTICE
	}
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
}

func stderrWriter() io.Writer {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return colorable.NewColorableStderr()
	}
	return colorable.NewNonColorable(os.Stderr)
}

func Debugf(format string, args ...interface{})    { log.Debugf(format, args...) }
func Infof(format string, args ...interface{})     { log.Infof(format, args...) }
func Noticef(format string, args ...interface{})   { log.Noticef(format, args...) }
func Warningf(format string, args ...interface{})  { log.Warningf(format, args...) }
func Errorf(format string, args ...interface{})    { log.Errorf(format, args...) }
func Criticalf(format string, args ...interface{}) { log.Criticalf(format, args...) }

// Warn logs err at WARNING if non-nil and reports whether it did,
// mirroring cmd/util.Warning's call shape in the teacher's CLI tools.
func Warn(err error, context string) bool {
	if err == nil {
		return false
	}
	if context == "" {
		Warningf("%s", err)
	} else {
		Warningf("%s: %s", context, err)
	}
	return true
}
