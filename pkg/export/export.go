// Package export renders pipeline results into files, key/value stores and
// object storage. Every file exporter writes through a temporary file and a
// rename, so a failed export never leaves a truncated file behind.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/pipeline"
)

// FileExporter is an exporter that writes files into an output directory.
type FileExporter interface {
	pipeline.Exporter

	// Files returns the names of the files Export writes, relative to Dir.
	Files() []string

	// Dir returns the output directory.
	Dir() string
}

// Paths returns the absolute paths written by the given exporters.
func Paths(exporters ...FileExporter) []string {
	var out []string
	for _, e := range exporters {
		for _, f := range e.Files() {
			out = append(out, filepath.Join(e.Dir(), f))
		}
	}
	return out
}

// writeAtomic writes a file by streaming into a temporary file in the same
// directory and renaming it over path once fn succeeds.
func writeAtomic(path string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return lferrors.WriteFailed(err, path)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return lferrors.WriteFailed(err, path)
	}
	name := tmp.Name()

	if err := fn(tmp); err != nil {
		tmp.Close()
		os.Remove(name)
		return lferrors.WriteFailed(err, path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return lferrors.WriteFailed(err, path)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return lferrors.WriteFailed(err, path)
	}
	return nil
}

// tempPath reserves a unique, non-existent path next to path.
func tempPath(path string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		return "", err
	}
	return name, nil
}

func formatHours(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
