// Package iox handles the engine's file output: serialised Profile
// JSON and alignment text, optionally gzip-compressed with pgzip so a
// multi-gigabyte batch run doesn't fill the output directory.
package iox

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/BurntSushi/profalign/internal/errs"
)

// WriteFile writes data to path, gzip-compressing it with pgzip when
// path ends in ".gz". Parent directories must already exist.
func WriteFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "creating "+path)
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".gz") {
		if _, err := f.Write(data); err != nil {
			return errs.Wrap(err, "writing "+path)
		}
		return nil
	}

	gz := pgzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return errs.Wrap(err, "writing "+path)
	}
	if err := gz.Close(); err != nil {
		return errs.Wrap(err, "flushing "+path)
	}
	return nil
}

// ReadFile reads path, transparently decompressing it with pgzip when
// it ends in ".gz".
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, "opening "+path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errs.Wrap(err, "opening gzip reader for "+path)
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}
