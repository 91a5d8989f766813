// Package document loads data files into values the check pipeline
// can walk. Files are decoded to UTF-8 first (handling BOMs and
// UTF-16 transparently), then parsed as JSON or YAML by extension.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a supported document format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor maps a file path to its document format by extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported document extension %q", filepath.Ext(path))
}

// Load reads, decodes, and parses a document file. The returned value
// is built from maps, slices, strings, bools, int64 and float64, so a
// JSON 3 checks as an integer while 3.5 checks as a float.
func Load(path string) (any, EncodingResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, EncodingResult{}, err
	}

	format, err := FormatFor(path)
	if err != nil {
		return nil, EncodingResult{}, err
	}

	detected := DetectEncoding(data)
	content := NormalizeToUTF8(data, detected)

	v, err := Parse([]byte(content), format)
	if err != nil {
		return nil, detected, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, detected, nil
}

// Parse decodes UTF-8 document bytes in the given format.
func Parse(data []byte, format Format) (any, error) {
	switch format {
	case FormatJSON:
		return parseJSON(data)
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported document format %q", format)
}

// parseJSON decodes with UseNumber and then narrows each number to
// int64 when it is integral, float64 otherwise. Plain json.Unmarshal
// would flatten every number to float64 and integer checks could
// never pass.
func parseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return narrowNumbers(v), nil
}

func narrowNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil && !strings.ContainsAny(t.String(), ".eE") {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = narrowNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = narrowNumbers(e)
		}
		return t
	}
	return v
}
