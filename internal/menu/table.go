package menu

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_layout.yaml
var defaultLayout []byte

var (
	ErrDuplicateMenu     = errors.New("duplicate menu name")
	ErrUnknownRoot       = errors.New("root menu is not defined")
	ErrEmptyMenu         = errors.New("menu has no items")
	ErrInvalidPolicy     = errors.New("invalid scan policy")
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrInvalidWait       = errors.New("wait multiplier must be at least 1")
)

// Table is the declarative menu layout loaded at startup.
type Table struct {
	Root  string     `yaml:"root"`
	Menus []MenuSpec `yaml:"menus"`
}

type MenuSpec struct {
	Name       string     `yaml:"name"`
	Scan       Policy     `yaml:"scan"`
	Visibility Visibility `yaml:"visibility"`
	Items      []ItemSpec `yaml:"items"`
}

// ItemSpec describes one item. Kind selects the variant; the remaining
// fields apply to the kinds that use them.
type ItemSpec struct {
	Kind     string  `yaml:"kind"`
	Label    string  `yaml:"label"`
	Announce string  `yaml:"announce,omitempty"`
	Wait     float64 `yaml:"wait,omitempty"`

	Target     string   `yaml:"target,omitempty"`
	Collapse   bool     `yaml:"collapse,omitempty"`
	Text       string   `yaml:"text,omitempty"`
	Category   string   `yaml:"category,omitempty"`
	Slot       int      `yaml:"slot,omitempty"`
	Action     string   `yaml:"action,omitempty"`
	Message    string   `yaml:"message,omitempty"`
	Recipients []string `yaml:"recipients,omitempty"`
	Name       string   `yaml:"name,omitempty"`
}

// DefaultTable returns the built-in communication board layout.
func DefaultTable() (Table, error) {
	return ParseTable(defaultLayout)
}

// LoadTable reads a layout file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read layout file: %w", err)
	}
	return ParseTable(data)
}

func ParseTable(data []byte) (Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return Table{}, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := Validate(table); err != nil {
		return Table{}, fmt.Errorf("invalid layout: %w", err)
	}
	return table, nil
}

// Validate checks table-level structure. Item-level problems are not errors;
// Build turns them into placeholders.
func Validate(table Table) error {
	seen := map[string]struct{}{}
	for _, spec := range table.Menus {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return errors.New("menu name is required")
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateMenu, name)
		}
		seen[name] = struct{}{}

		switch spec.Scan {
		case PolicyRepeat, PolicyFinish:
		default:
			return fmt.Errorf("%w %q in menu %s", ErrInvalidPolicy, spec.Scan, name)
		}
		switch spec.Visibility {
		case VisibilityAlways, VisibilityCollapsible, "":
		default:
			return fmt.Errorf("%w %q in menu %s", ErrInvalidVisibility, spec.Visibility, name)
		}
		if len(spec.Items) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyMenu, name)
		}
		for i, item := range spec.Items {
			if item.Wait != 0 && item.Wait < 1 {
				return fmt.Errorf("%w: %s item %d", ErrInvalidWait, name, i)
			}
		}
	}
	if _, ok := seen[strings.TrimSpace(table.Root)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoot, table.Root)
	}
	return nil
}
