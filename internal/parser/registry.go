package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/data-explorer/backend/internal/models"
)

// Registry holds all available parsers and picks one by file extension.
type Registry struct {
	parsers []Parser
}

// Global registry instance
var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		parsers: []Parser{
			NewCSVParser(),
			NewXLSXParser(),
			NewXLSParser(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// FindParser returns the parser for fileName's extension.
func (r *Registry) FindParser(fileName string) (Parser, error) {
	for _, p := range r.parsers {
		if p.CanParse(fileName) {
			return p, nil
		}
	}
	return nil, &ParseError{
		File: fileName,
		Kind: ErrKindUnsupported,
		Err:  fmt.Errorf("no parser for extension %q", filepath.Ext(fileName)),
	}
}

// Extensions lists the extensions handled by the registered parsers.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for _, p := range r.parsers {
		exts = append(exts, "."+string(p.Format()))
	}
	return exts
}

// Parse picks a parser for fileName and reads r with it. Every failure is
// returned as a *ParseError.
func (r *Registry) Parse(fileName string, src io.Reader) (*models.Table, models.FileFormat, error) {
	p, err := r.FindParser(fileName)
	if err != nil {
		return nil, "", err
	}

	table, err := p.Parse(src)
	if err != nil {
		return nil, p.Format(), &ParseError{File: fileName, Kind: ErrKindMalformed, Err: err}
	}
	return table, p.Format(), nil
}

// hasExt reports whether fileName ends with ext, ignoring case.
func hasExt(fileName, ext string) bool {
	return strings.EqualFold(filepath.Ext(fileName), ext)
}
