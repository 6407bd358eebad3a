package ontology

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/c360/cvsync/errors"
)

// File is the on-disk snapshot of one ontology, as exported by the ontology
// parser. JSON files are accepted too since YAML is a superset.
type File struct {
	Ontology string         `yaml:"ontology"`
	Database string         `yaml:"database"`
	Pattern  string         `yaml:"pattern"`
	Terms    []TermSnapshot `yaml:"terms"`
}

// LoadFile reads a snapshot file into a MemorySource.
func LoadFile(path string) (*MemorySource, error) {
	return LoadFileAs(path, File{})
}

// LoadFileAs reads a snapshot file, replacing its ontology, database and
// pattern with the non-empty fields of override.
func LoadFileAs(path string, override File) (*MemorySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "ontology", "LoadFile", fmt.Sprintf("read %s", path))
	}
	f, err := decode(data)
	if err != nil {
		return nil, err
	}
	if override.Ontology != "" {
		f.Ontology = override.Ontology
	}
	if override.Database != "" {
		f.Database = override.Database
	}
	if override.Pattern != "" {
		f.Pattern = override.Pattern
	}
	return f.Source()
}

// Parse decodes snapshot file contents into a MemorySource.
func Parse(data []byte) (*MemorySource, error) {
	f, err := decode(data)
	if err != nil {
		return nil, err
	}
	return f.Source()
}

//go:embed snapshot.schema.json
var snapshotSchema []byte

var snapshotSchemaLoader = gojsonschema.NewBytesLoader(snapshotSchema)

func decode(data []byte) (*File, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "ontology", "Parse", err.Error())
	}
	if err := validateSnapshot(doc); err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "ontology", "Parse", err.Error())
	}
	return &f, nil
}

// validateSnapshot checks the decoded document before it is bound to File, so
// a misspelt term field is reported instead of dropped.
func validateSnapshot(doc any) error {
	result, err := gojsonschema.Validate(snapshotSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.WrapInvalid(err, "ontology", "Parse", "schema validation")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errors.WrapInvalid(errors.ErrInvalidData, "ontology", "Parse", strings.Join(msgs, "; "))
}

// Source indexes the file terms into a MemorySource.
func (f *File) Source() (*MemorySource, error) {
	var pattern *regexp.Regexp
	if f.Pattern != "" {
		p, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, errors.WrapInvalid(err, "ontology", "Parse",
				fmt.Sprintf("invalid pattern %q", f.Pattern))
		}
		pattern = p
	}
	return NewMemorySource(f.Ontology, f.Database, pattern, f.Terms)
}
