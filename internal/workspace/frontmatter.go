package workspace

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the YAML metadata block at the top of an artifact.
type FrontMatter struct {
	Version string     `yaml:"version"`
	Deps    []DepEntry `yaml:"deps"`
}

// DepEntry is one declared dependency: either a bare locator string or a
// mapping carrying {ref, optional}.
type DepEntry struct {
	Ref      string
	Optional bool
}

// UnmarshalYAML accepts both dependency forms.
func (d *DepEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		d.Ref = node.Value
		d.Optional = false
		return nil
	case yaml.MappingNode:
		var obj struct {
			Ref      string `yaml:"ref"`
			Optional bool   `yaml:"optional"`
		}
		if err := node.Decode(&obj); err != nil {
			return err
		}
		if obj.Ref == "" {
			return fmt.Errorf("dependency entry at line %d has no ref", node.Line)
		}
		d.Ref = obj.Ref
		d.Optional = obj.Optional
		return nil
	default:
		return fmt.Errorf("dependency entry at line %d: expected string or mapping", node.Line)
	}
}

const fence = "---"

// SplitFrontMatter separates a document into its front matter block and
// markdown body. A document without a leading fence has no front matter;
// that is not an error — the body is the whole document and the returned
// block is nil. A malformed YAML block is an error so callers can annotate
// the artifact as lacking usable metadata.
func SplitFrontMatter(doc []byte) (*FrontMatter, string, error) {
	text := string(doc)
	if !strings.HasPrefix(text, fence+"\n") && text != fence {
		return nil, text, nil
	}

	rest := strings.TrimPrefix(text, fence+"\n")
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return nil, text, fmt.Errorf("front matter opened but never closed")
	}
	block := rest[:end]
	body := rest[end+len("\n"+fence):]
	body = strings.TrimPrefix(body, "\n")

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil, body, fmt.Errorf("parsing front matter: %w", err)
	}
	return &fm, body, nil
}
