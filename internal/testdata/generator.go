package testdata

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"contract-hooks/internal/classify"
	"contract-hooks/internal/types"
)

// ErrNoProperties is returned when the request schema has no object properties
var ErrNoProperties = errors.New("testdata: schema has no properties")

const (
	validPassword    = "testpassword123"
	invalidNumber    = -999
	sentinelNumber   = 42
	conflictEmail    = "conflict@example.com"
	conflictPassword = "conflictpassword"
	conflictFirst    = "Conflict"
	conflictLast     = "User"
	maxDepth         = 6
)

// SchemaResolver follows schema references of nested properties
type SchemaResolver interface {
	Resolve(ref *openapi3.SchemaRef) *openapi3.Schema
}

// CredentialSource exposes the account captured from a registration
type CredentialSource interface {
	Credentials() (types.Credentials, bool)
}

// MoneyRange bounds generated amounts for numeric fields whose name contains Pattern
type MoneyRange struct {
	Pattern string
	Min     float64
	Max     float64
}

// Options configures value generation
type Options struct {
	EmailSuffix string
	Money       []MoneyRange
	Rand        *rand.Rand
	Now         func() time.Time
}

// Synthesizer builds request bodies from a request schema and an intended outcome
type Synthesizer struct {
	fields   *classify.FieldClassifier
	resolver SchemaResolver
	suffix   string
	money    []MoneyRange
	rand     *rand.Rand
	now      func() time.Time
	seq      atomic.Uint64
}

// valueFunc produces one field value
type valueFunc func(name string, schema *openapi3.Schema, depth int) interface{}

// NewSynthesizer creates a new instance of Synthesizer
func NewSynthesizer(fields *classify.FieldClassifier, resolver SchemaResolver, opts Options) *Synthesizer {
	suffix := opts.EmailSuffix
	if suffix == "" {
		suffix = "@example.com"
	}
	if !strings.HasPrefix(suffix, "@") {
		suffix = "@" + suffix
	}
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	money := make([]MoneyRange, 0, len(opts.Money))
	for _, m := range opts.Money {
		m.Pattern = strings.ToLower(m.Pattern)
		money = append(money, m)
	}
	return &Synthesizer{
		fields:   fields,
		resolver: resolver,
		suffix:   suffix,
		money:    money,
		rand:     r,
		now:      now,
	}
}

// Synthesize returns a request body for schema shaped to provoke outcome.
// Every outcome maps to a generator, so the only failure is a schema without properties.
func (s *Synthesizer) Synthesize(schema *openapi3.Schema, outcome types.OutcomeClass, creds CredentialSource) (map[string]interface{}, error) {
	if schema == nil || len(schema.Properties) == 0 {
		return nil, ErrNoProperties
	}

	generate := s.generatorFor(outcome, creds)
	body := make(map[string]interface{}, len(schema.Properties))
	for name, ref := range schema.Properties {
		body[name] = generate(name, s.resolve(ref), 0)
	}
	return body, nil
}

func (s *Synthesizer) generatorFor(outcome types.OutcomeClass, creds CredentialSource) valueFunc {
	switch outcome {
	case types.OutcomeBadRequest:
		return s.invalidValue
	case types.OutcomeConflict:
		return s.conflictValue(creds)
	case types.OutcomeSuccess, types.OutcomeUnspecified, types.OutcomeUnauthorized,
		types.OutcomeNotFound, types.OutcomeServerError:
		return s.validValue
	default:
		return s.validValue
	}
}

// validValue generates a value the system under test should accept
func (s *Synthesizer) validValue(name string, schema *openapi3.Schema, depth int) interface{} {
	typ := schemaType(schema)

	switch s.fields.Classify(name, typ, schemaFormat(schema)) {
	case types.RoleEmail:
		if typ == "string" || typ == "" {
			return s.UniqueEmail()
		}
	case types.RolePassword:
		if typ == "string" || typ == "" {
			return validPassword
		}
	case types.RoleIdentifier:
		if isNumeric(typ) {
			return 1
		}
	case types.RoleToken, types.RoleUnknown:
	}

	switch typ {
	case "string":
		if len(schema.Enum) > 0 {
			return schema.Enum[0]
		}
		return fmt.Sprintf("test-%s-value", name)
	case "integer", "number":
		if r, ok := s.moneyRange(name); ok {
			return s.amount(r, typ == "integer")
		}
		return sentinelNumber
	case "boolean":
		return true
	case "object":
		return s.object(schema, depth, s.validValue)
	case "array":
		return s.array(name, schema, depth, s.validValue)
	default:
		return fmt.Sprintf("test-%s", name)
	}
}

// invalidValue generates a value that violates required-field or domain rules
func (s *Synthesizer) invalidValue(name string, schema *openapi3.Schema, depth int) interface{} {
	switch schemaType(schema) {
	case "string":
		return ""
	case "integer", "number":
		return invalidNumber
	case "object":
		return s.object(schema, depth, s.invalidValue)
	case "array":
		return s.array(name, schema, depth, s.invalidValue)
	default:
		return ""
	}
}

// conflictValue reuses the registered account so the request collides with it
func (s *Synthesizer) conflictValue(creds CredentialSource) valueFunc {
	var captured types.Credentials
	var ok bool
	if creds != nil {
		captured, ok = creds.Credentials()
	}
	pick := func(value, fallback string) string {
		if ok && value != "" {
			return value
		}
		return fallback
	}

	var conflict valueFunc
	conflict = func(name string, schema *openapi3.Schema, depth int) interface{} {
		typ := schemaType(schema)

		switch s.fields.Classify(name, typ, schemaFormat(schema)) {
		case types.RoleEmail:
			if typ == "string" || typ == "" {
				return pick(captured.Email, conflictEmail)
			}
		case types.RolePassword:
			return pick(captured.Password, conflictPassword)
		case types.RoleIdentifier, types.RoleToken, types.RoleUnknown:
		}

		lowered := strings.ToLower(name)
		switch {
		case strings.Contains(lowered, "name") && strings.Contains(lowered, "first"):
			return pick(captured.FirstName, conflictFirst)
		case strings.Contains(lowered, "name"):
			return pick(captured.LastName, conflictLast)
		case typ == "object":
			return s.object(schema, depth, conflict)
		}
		return s.validValue(name, schema, depth)
	}
	return conflict
}

func (s *Synthesizer) object(schema *openapi3.Schema, depth int, generate valueFunc) interface{} {
	result := make(map[string]interface{})
	if schema == nil || depth >= maxDepth {
		return result
	}
	for key, prop := range schema.Properties {
		result[key] = generate(key, s.resolve(prop), depth+1)
	}
	return result
}

func (s *Synthesizer) array(name string, schema *openapi3.Schema, depth int, generate valueFunc) interface{} {
	if schema == nil || schema.Items == nil || depth >= maxDepth {
		return []interface{}{}
	}
	return []interface{}{generate(name, s.resolve(schema.Items), depth+1)}
}

// UniqueEmail returns an address that never repeats within a process and is
// unlikely to collide with earlier runs.
func (s *Synthesizer) UniqueEmail() string {
	seq := s.seq.Add(1)
	return fmt.Sprintf("test%d%d%s%s", s.now().UnixMilli(), seq, uuid.NewString()[:8], s.suffix)
}

func (s *Synthesizer) moneyRange(name string) (MoneyRange, bool) {
	lowered := strings.ToLower(name)
	for _, r := range s.money {
		if r.Pattern != "" && strings.Contains(lowered, r.Pattern) {
			return r, true
		}
	}
	return MoneyRange{}, false
}

func (s *Synthesizer) amount(r MoneyRange, whole bool) interface{} {
	value := r.Min + s.rand.Float64()*(r.Max-r.Min)
	if whole {
		return int(math.Round(value))
	}
	return math.Round(value*100) / 100
}

func (s *Synthesizer) resolve(ref *openapi3.SchemaRef) *openapi3.Schema {
	if ref == nil {
		return nil
	}
	if ref.Value != nil {
		return ref.Value
	}
	if s.resolver == nil {
		return nil
	}
	return s.resolver.Resolve(ref)
}

// schemaType returns the first non-null declared type; untyped schemas with
// properties count as objects.
func schemaType(schema *openapi3.Schema) string {
	if schema == nil {
		return ""
	}
	if schema.Type != nil {
		for _, t := range *schema.Type {
			if t != "null" {
				return t
			}
		}
	}
	if len(schema.Properties) > 0 {
		return "object"
	}
	return ""
}

func schemaFormat(schema *openapi3.Schema) string {
	if schema == nil {
		return ""
	}
	return schema.Format
}

func isNumeric(typ string) bool {
	return typ == "integer" || typ == "number"
}
