package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

type result interface {
	IsOK() bool
}

func write(w io.Writer, r result, format string) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
}

// emit prints r and exits with status 1 when it is a failure.
func emit(r result) {
	if err := write(os.Stdout, r, output); err != nil {
		slog.Error("failed to write result", slog.Any("error", err))
		os.Exit(1)
	}
	if !r.IsOK() {
		os.Exit(1)
	}
}

func fail(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
