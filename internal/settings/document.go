package settings

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the parsed settings file. It edits the YAML node tree in
// place so keys it does not know about, their order and comments survive a
// round trip.
type Document struct {
	head *yaml.Node
	root *yaml.Node
}

func NewDocument() *Document {
	return &Document{root: newMapping()}
}

func ParseDocument(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse settings YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return NewDocument(), nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return NewDocument(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("settings root must be a mapping")
	}
	return &Document{head: &doc, root: root}, nil
}

func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	target := d.root
	if d.head != nil {
		target = d.head
	}
	if err := enc.Encode(target); err != nil {
		return nil, fmt.Errorf("encode settings YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode settings YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// Keys returns the top-level keys in file order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.root.Content)/2)
	for i := 0; i+1 < len(d.root.Content); i += 2 {
		keys = append(keys, d.root.Content[i].Value)
	}
	return keys
}

func (d *Document) Has(key string) bool {
	return mappingValue(d.root, key) != nil
}

// Decode decodes the value at key into out. It reports false when the key
// is absent.
func (d *Document) Decode(key string, out any) (bool, error) {
	n := mappingValue(d.root, key)
	if n == nil {
		return false, nil
	}
	if err := n.Decode(out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (d *Document) Set(key string, value any) error {
	n, err := encodeNode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	setMappingValue(d.root, key, n)
	return nil
}

func (d *Document) Delete(key string) bool {
	return deleteMappingKey(d.root, key)
}

// SetJobField sets <job>.<field>, creating the job mapping when it is
// missing or holds a non-mapping value. Sibling keys are left untouched.
func (d *Document) SetJobField(job, field string, value any) error {
	n, err := encodeNode(value)
	if err != nil {
		return fmt.Errorf("encode %s.%s: %w", job, field, err)
	}
	setMappingValue(d.jobMapping(job), field, n)
	return nil
}

func (d *Document) jobMapping(job string) *yaml.Node {
	jn := mappingValue(d.root, job)
	if jn != nil && jn.Kind == yaml.MappingNode {
		return jn
	}
	jn = newMapping()
	setMappingValue(d.root, job, jn)
	return jn
}

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func encodeNode(v any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return &n, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func deleteMappingKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}

// ArgList is a list of rsync arguments. It also accepts a single
// whitespace-separated string.
type ArgList []string

func (a *ArgList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*a = nil
			return nil
		}
		*a = strings.Fields(value.Value)
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := value.Decode(&out); err != nil {
			return err
		}
		*a = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a list of arguments", value.Line)
	}
}
