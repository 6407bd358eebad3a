package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/cvsync/errors"
)

// Format selects a report rendering.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml, case insensitive.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.WrapInvalid(fmt.Errorf("unknown report format %q", s), "report", "ParseFormat", "parse format")
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "report", "JSON", "marshal report")
	}
	return data, nil
}

// YAML renders the report as YAML.
func (r *Report) YAML() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "report", "YAML", "marshal report")
	}
	return data, nil
}

// Write renders the report in format to w.
func (r *Report) Write(w io.Writer, format Format) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = r.JSON()
		data = append(data, '\n')
	case FormatYAML:
		data, err = r.YAML()
	default:
		return errors.WrapInvalid(fmt.Errorf("unknown report format %q", format), "report", "Write", "select format")
	}
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "report", "Write", "write report")
	}
	return nil
}

// Parse decodes a JSON report, as stored in the report archive.
func Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "report", "Parse", err.Error())
	}
	return &r, nil
}
