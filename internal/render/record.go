package render

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field is one key of the vars file.
type Field struct {
	Key   string
	Value any // string, int or bool
}

// Record is an ordered YAML mapping with an optional header comment.
// Blank Key fields start a new commented section.
type Record struct {
	Header []string
	Fields []Field
}

// Add appends a field.
func (r *Record) Add(key string, value any) *Record {
	r.Fields = append(r.Fields, Field{Key: key, Value: value})
	return r
}

// Section starts a commented group of fields.
func (r *Record) Section(title string) *Record {
	r.Fields = append(r.Fields, Field{Value: title})
	return r
}

// Get returns the value of key.
func (r *Record) Get(key string) (any, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Marshal encodes the record as YAML, preserving field order.
func (r *Record) Marshal() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	var section string
	seen := make(map[string]bool, len(r.Fields))

	for _, f := range r.Fields {
		if f.Key == "" {
			section, _ = f.Value.(string)
			continue
		}
		if seen[f.Key] {
			return nil, fmt.Errorf("duplicate key %q", f.Key)
		}
		seen[f.Key] = true

		value, err := scalarNode(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key}
		if section != "" {
			key.HeadComment = "# " + section
			section = ""
		}
		root.Content = append(root.Content, key, value)
	}

	var buf bytes.Buffer
	for _, line := range r.Header {
		buf.WriteString(strings.TrimRight("# "+line, " ") + "\n")
	}
	if len(r.Header) > 0 {
		buf.WriteString("\n")
	}

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return buf.Bytes(), nil
}

func scalarNode(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case string:
		n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val}
		if strings.Contains(val, "{{") {
			n.Style = yaml.DoubleQuotedStyle
		}
		return n, nil
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(val)}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(val)}, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// ParseRecord decodes a vars file into a map.
func ParseRecord(data []byte) (map[string]any, error) {
	out := make(map[string]any)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	return out, nil
}

// ReadRecord reads and decodes the vars file at path.
func ReadRecord(path string) (map[string]any, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	return ParseRecord(data)
}

// ErrRecordExists is returned by WriteRecord when path is already taken.
var ErrRecordExists = errors.New("record already exists")

// WriteRecord writes rec to path atomically. It never replaces an
// existing file: the content is staged in a temporary file and linked into
// place, which fails if path exists.
func WriteRecord(path string, rec *Record) error {
	data, err := rec.Marshal()
	if err != nil {
		return err
	}

	tmp, err := stage(path, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrRecordExists, path)
		}
		return fmt.Errorf("linking record into place: %w", err)
	}
	return nil
}

// WriteFile writes data to path atomically, replacing any previous file.
func WriteFile(path string, data []byte) error {
	tmp, err := stage(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming %s into place: %w", filepath.Base(path), err)
	}
	return nil
}

// stage writes data to a synced temporary file next to path.
func stage(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Chmod(0o640); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("chmod %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("closing %s: %w", tmp, err)
	}
	return tmp, nil
}
