// Package presentation resolves categorical event-log values to their
// canonical display form.
//
// The built-in table is embedded from presentations.yaml. Deployments can
// layer their own file on top of it with Load.
package presentation

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

// Unknown is the display form of an absent categorical value.
const Unknown = "Unknown"

//go:embed presentations.yaml
var builtinYAML []byte

// Table maps source names to display strings, one map per field.
type Table struct {
	Severities          map[string]string `yaml:"severities"`
	TransactionStatuses map[string]string `yaml:"transaction_statuses"`
	Applications        map[string]string `yaml:"applications"`
	Events              map[string]string `yaml:"events"`
}

var (
	builtinOnce  sync.Once
	builtinTable *Table
)

// Default returns the embedded table. The returned value must not be modified.
func Default() *Table {
	builtinOnce.Do(func() {
		t, err := parse(builtinYAML)
		if err != nil {
			panic(fmt.Sprintf("presentation: embedded table is invalid: %v", err))
		}
		builtinTable = t
	})
	return builtinTable
}

// Load returns the embedded table with entries from the YAML file at path
// merged over it. An empty path yields the embedded table.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presentations file: %w", err)
	}
	override, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse presentations file %s: %w", path, err)
	}

	base := Default()
	return &Table{
		Severities:          merge(base.Severities, override.Severities),
		TransactionStatuses: merge(base.TransactionStatuses, override.TransactionStatuses),
		Applications:        merge(base.Applications, override.Applications),
		Events:              merge(base.Events, override.Events),
	}, nil
}

func parse(raw []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func merge(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Severity returns the display form of s.
func (t *Table) Severity(s models.Severity) string {
	return lookup(t.Severities, s.String())
}

// TransactionStatus returns the display form of s.
func (t *Table) TransactionStatus(s models.TransactionStatus) string {
	return lookup(t.TransactionStatuses, s.String())
}

// Application returns the display form of an application name.
func (t *Table) Application(name string) string {
	return lookup(t.Applications, name)
}

// Event returns the display form of an event name.
func (t *Table) Event(name string) string {
	return lookup(t.Events, name)
}

// lookup never drops a value: names missing from the table are kept as is.
func lookup(m map[string]string, name string) string {
	if v, ok := m[name]; ok {
		return v
	}
	if name == "" {
		return Unknown
	}
	return name
}
