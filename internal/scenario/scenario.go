// Package scenario runs scripted checks against an ordered map. Scripts are
// YAML documents validated against an embedded JSON Schema.
package scenario

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

// Step operations.
const (
	OpInsert = "insert"
	OpDelete = "delete"
	OpFind   = "find"
	OpLen    = "len"
	OpVerify = "verify"
	OpRoot   = "root"
	OpDump   = "dump"
	OpClear  = "clear"
)

// Expected results of insert, delete and find steps.
const (
	ExpectOK           = "ok"
	ExpectNotFound     = "not_found"
	ExpectAllocFailure = "alloc_failure"
)

// Sentinel errors.
var (
	// ErrInvalidScenario wraps schema violations and YAML errors.
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrExpectation means a step produced a different result than declared.
	ErrExpectation = errors.New("expectation not met")
)

// Scenario is a named list of steps run against a fresh tree.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Limit caps the number of live nodes; zero means unlimited.
	Limit int    `yaml:"limit"`
	Steps []Step `yaml:"steps"`
}

// Step is one scripted operation with its expectations. Which fields apply
// depends on Op.
type Step struct {
	Op          string   `yaml:"op"`
	Key         *uint32  `yaml:"key"`
	Keys        []uint32 `yaml:"keys"`
	Value       *uint32  `yaml:"value"`
	Want        *uint64  `yaml:"want"`
	Expect      string   `yaml:"expect"`
	BlackHeight int      `yaml:"black_height"`
	Color       string   `yaml:"color"`
	Text        string   `yaml:"text"`
}

func (s Step) String() string {
	switch {
	case s.Key != nil:
		return fmt.Sprintf("%s %d", s.Op, *s.Key)
	case len(s.Keys) > 0:
		return fmt.Sprintf("%s %v", s.Op, s.Keys)
	default:
		return s.Op
	}
}

// keys returns the keys a step applies to.
func (s Step) keys() []uint32 {
	if s.Key != nil {
		return []uint32{*s.Key}
	}

	return s.Keys
}

// SchemaError lists every schema violation of a document.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidScenario, strings.Join(e.Violations, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrInvalidScenario
}

// Parse validates data against the scenario schema and decodes it.
func Parse(data []byte) (*Scenario, error) {
	var doc any

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if !result.Valid() {
		schemaErr := &SchemaError{}
		for _, verr := range result.Errors() {
			schemaErr.Violations = append(schemaErr.Violations, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
		}

		return nil, schemaErr
	}

	var sc Scenario

	err = yaml.Unmarshal(data, &sc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	return &sc, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return sc, nil
}
