// Package reporting renders a project profile for humans or machines.
// Both formatters are deterministic: identical profiles produce byte-
// identical output.
package reporting

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Formatter renders one profile to a writer.
type Formatter interface {
	Format(w io.Writer, p schemas.ProjectProfile) error
}

// New returns the formatter for the given name ("terminal" or "json").
func New(format string) (Formatter, error) {
	switch format {
	case "terminal", "":
		return &Terminal{}, nil
	case "json":
		return &JSON{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: terminal, json)", format)
	}
}

// JSON emits the full profile as indented JSON. Map keys are sorted by the
// encoder, so the document is reproducible.
type JSON struct{}

func (*JSON) Format(w io.Writer, p schemas.ProjectProfile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
