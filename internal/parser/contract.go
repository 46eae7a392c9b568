package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

const componentSchemaPrefix = "#/components/schemas/"

var (
	// ErrEmptyDocument is returned when the contract has no content
	ErrEmptyDocument = errors.New("parser: contract document is empty")
	// ErrNoPaths is returned when the contract declares no paths object
	ErrNoPaths = errors.New("parser: contract document has no paths")
)

var operationMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Document is a decoded contract. Paths are decoded one operation at a time and
// references are left unresolved, so a malformed schema or a broken pointer only
// affects the operation that uses it.
type Document struct {
	paths   *openapi3.Paths
	schemas openapi3.Schemas
	skipped []string
}

// LoadFile reads and decodes the contract at path
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract document: %w", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract document %s: %w", path, err)
	}
	return doc, nil
}

// ParseDocument decodes a YAML or JSON contract. Only unreadable input or a missing
// paths object is an error; malformed operations and schemas are recorded in Skipped.
func ParseDocument(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyDocument
	}

	raw := trimmed
	if trimmed[0] != '{' {
		var tree interface{}
		if err := yaml.Unmarshal(trimmed, &tree); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		converted, err := json.Marshal(stringKeys(tree))
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML to JSON: %w", err)
		}
		raw = converted
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return nil, errors.New("invalid OpenAPI document: top level is not an object")
	}
	var paths map[string]json.RawMessage
	if err := json.Unmarshal(top["paths"], &paths); err != nil || paths == nil {
		return nil, ErrNoPaths
	}

	doc := &Document{paths: openapi3.NewPaths(), schemas: make(openapi3.Schemas)}
	doc.decodeSchemas(top["components"])
	for path, item := range paths {
		doc.decodePathItem(path, item)
	}
	sort.Strings(doc.skipped)
	return doc, nil
}

// Skipped lists the contract parts that could not be decoded, such as
// "POST /orders requestBody" or "components.schemas.Order".
func (d *Document) Skipped() []string {
	return d.skipped
}

func (d *Document) skip(part string) {
	d.skipped = append(d.skipped, part)
}

func (d *Document) decodeSchemas(components json.RawMessage) {
	var section struct {
		Schemas map[string]json.RawMessage `json:"schemas"`
	}
	if len(components) == 0 || json.Unmarshal(components, &section) != nil {
		return
	}
	for name, raw := range section.Schemas {
		var ref openapi3.SchemaRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			d.skip("components.schemas." + name)
			continue
		}
		d.schemas[name] = &ref
	}
}

func (d *Document) decodePathItem(path string, raw json.RawMessage) {
	var methods map[string]json.RawMessage
	if err := json.Unmarshal(raw, &methods); err != nil || methods == nil {
		d.skip(path)
		return
	}

	item := &openapi3.PathItem{}
	for _, method := range operationMethods {
		opRaw, ok := methods[method]
		if !ok {
			continue
		}
		name := strings.ToUpper(method) + " " + path
		if operation := d.decodeOperation(name, opRaw); operation != nil {
			item.SetOperation(strings.ToUpper(method), operation)
		}
	}
	d.paths.Set(path, item)
}

// decodeOperation decodes an operation whole and falls back to decoding its parts
// one by one, dropping only the parts that are malformed.
func (d *Document) decodeOperation(name string, raw json.RawMessage) *openapi3.Operation {
	var operation openapi3.Operation
	if err := json.Unmarshal(raw, &operation); err == nil {
		return &operation
	}

	var parts map[string]json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil || parts == nil {
		d.skip(name)
		return nil
	}

	degraded := &openapi3.Operation{}
	if v, ok := parts["summary"]; ok {
		_ = json.Unmarshal(v, &degraded.Summary)
	}
	if v, ok := parts["description"]; ok {
		_ = json.Unmarshal(v, &degraded.Description)
	}
	if v, ok := parts["security"]; ok {
		var security openapi3.SecurityRequirements
		if err := json.Unmarshal(v, &security); err != nil {
			d.skip(name + " security")
		} else {
			degraded.Security = &security
		}
	}
	if v, ok := parts["requestBody"]; ok {
		var body openapi3.RequestBodyRef
		if err := json.Unmarshal(v, &body); err != nil {
			d.skip(name + " requestBody")
		} else {
			degraded.RequestBody = &body
		}
	}

	degraded.Responses = &openapi3.Responses{}
	var responses map[string]json.RawMessage
	if v, ok := parts["responses"]; ok && json.Unmarshal(v, &responses) == nil {
		for status, rawResponse := range responses {
			var response openapi3.ResponseRef
			if err := json.Unmarshal(rawResponse, &response); err != nil {
				d.skip(name + " responses." + status)
				continue
			}
			degraded.Responses.Set(status, &response)
		}
	}
	return degraded
}

// Resolve returns the schema behind ref, following at most one
// #/components/schemas/Name pointer. Unresolvable references yield nil.
func (d *Document) Resolve(ref *openapi3.SchemaRef) *openapi3.Schema {
	if ref == nil {
		return nil
	}
	if ref.Value != nil {
		return ref.Value
	}
	name, ok := strings.CutPrefix(ref.Ref, componentSchemaPrefix)
	if !ok {
		return nil
	}
	target, ok := d.schemas[name]
	if !ok || target == nil {
		return nil
	}
	return target.Value
}

// stringKeys converts YAML mappings with non-string keys (e.g. unquoted status
// codes) into JSON-compatible maps.
func stringKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []interface{}:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}
