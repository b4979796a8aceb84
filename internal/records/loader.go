package records

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Loader reads a file format into a Dataset.
type Loader interface {
	CanLoad(filename string) bool
	Load(path string, opt Options) (*Dataset, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates no loader accepts the file.
var ErrUnsupported = errors.New("unsupported dataset format")

// LoadFile selects a loader by filename and parses the file.
func LoadFile(path string, opt Options) (*Dataset, error) {
	for _, l := range registry {
		if l.CanLoad(path) {
			return l.Load(path, opt)
		}
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
}

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".txt")
}

func (csvLoader) Load(path string, opt Options) (*Dataset, error) {
	return ParseCSVFile(path, opt)
}

type tsvLoader struct{}

func (tsvLoader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".tsv")
}

func (tsvLoader) Load(path string, opt Options) (*Dataset, error) {
	if opt.Delimiter == 0 {
		opt.Delimiter = '\t'
	}
	return ParseCSVFile(path, opt)
}

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func (xlsxLoader) Load(path string, opt Options) (*Dataset, error) {
	return ParseXLSXFile(path, opt.Sheet, opt)
}

func init() {
	Register(csvLoader{})
	Register(tsvLoader{})
	Register(xlsxLoader{})
}
