// Package ome is the compiler's root package: it owns the typed
// configuration record and wires every pipeline stage (parser, resolver,
// tag allocator, program builder, lowerer, optimizer, register allocator,
// emitter) into the single Compile entry point cmd/ome's CLI calls.
package ome

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type cfgValType int

const (
	cfgUndefined cfgValType = iota
	cfgBool
	cfgInt
	cfgString
)

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

// Config is a typed, string-keyed option map, grounded on the teacher's
// config.go Config/cfgVal pair: every key carries its own type, and
// reading or writing it with the wrong accessor panics rather than
// silently coercing, the same way grammar.add_builtins or
// compiler.optimize can't accidentally become a string.
type Config map[string]*cfgVal

// NewConfig returns a Config seeded with this compiler's defaults
// (spec.md §4.1's flags plus SPEC_FULL.md §1's ambient-stack keys):
// "compiler.indent_width" configures source.Reader's tab width,
// "tags.pointer_threshold" configures tags.Allocator's opaque/pointer
// boundary, "array.max_size" and "method.max_params" configure the
// parser's literal/signature bounds. Zero means "use the component's own
// built-in default" for all four.
func NewConfig() *Config {
	cfg := Config{}
	cfg.SetInt("compiler.optimize", 1)
	cfg.SetString("compiler.target", "x86_64")
	cfg.SetString("compiler.backend", "asm")
	cfg.SetBool("compiler.verbose", false)
	cfg.SetBool("compiler.print_ast", false)
	cfg.SetBool("compiler.print_resolved_ast", false)
	cfg.SetBool("compiler.print_ir", false)
	cfg.SetBool("compiler.print_target", false)
	cfg.SetInt("compiler.indent_width", 0)
	cfg.SetInt("tags.pointer_threshold", 0)
	cfg.SetInt("array.max_size", 0)
	cfg.SetInt("method.max_params", 0)
	return &cfg
}

func (c *Config) assignType(key string, typ cfgValType) *cfgVal {
	v, ok := (*c)[key]
	if !ok {
		v = &cfgVal{typ: typ}
		(*c)[key] = v
	}
	if v.typ != cfgUndefined && v.typ != typ {
		panic(fmt.Sprintf("ome: config key %q already has a different type", key))
	}
	v.typ = typ
	return v
}

func (c *Config) checkType(key string, typ cfgValType) *cfgVal {
	v, ok := (*c)[key]
	if !ok || v.typ != typ {
		panic(fmt.Sprintf("ome: config key %q is not set to the expected type", key))
	}
	return v
}

func (c *Config) SetBool(key string, value bool) { c.assignType(key, cfgBool).asBool = value }
func (c *Config) SetInt(key string, value int)   { c.assignType(key, cfgInt).asInt = value }
func (c *Config) SetString(key string, value string) {
	c.assignType(key, cfgString).asString = value
}

func (c *Config) GetBool(key string) bool     { return c.checkType(key, cfgBool).asBool }
func (c *Config) GetInt(key string) int       { return c.checkType(key, cfgInt).asInt }
func (c *Config) GetString(key string) string { return c.checkType(key, cfgString).asString }

// yamlDoc is the on-disk shape LoadYAML/Dump exchange: a flat map from
// dotted key to an untyped scalar, since Config itself has no fixed
// schema beyond what NewConfig seeds.
type yamlDoc map[string]interface{}

// LoadYAML merges key/value pairs from a YAML document into c, inferring
// each value's cfgValType from its decoded Go type. A key already present
// in c (from NewConfig or an earlier SetXxx) must decode to the same type
// or SetXxx panics; a key not yet present is simply added, the same way
// the teacher's SetXxx always accepts a fresh path.
func (c *Config) LoadYAML(data []byte) error {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("ome: parsing config yaml: %w", err)
	}
	for key, raw := range doc {
		switch v := raw.(type) {
		case bool:
			c.SetBool(key, v)
		case int:
			c.SetInt(key, v)
		case string:
			c.SetString(key, v)
		default:
			return fmt.Errorf("ome: config key %q has unsupported yaml type %T", key, raw)
		}
	}
	return nil
}

// Dump serializes c back to YAML, one entry per key, sorted by yaml.v3's
// own map-encoding order.
func (c *Config) Dump() ([]byte, error) {
	doc := yamlDoc{}
	for key, v := range *c {
		switch v.typ {
		case cfgBool:
			doc[key] = v.asBool
		case cfgInt:
			doc[key] = v.asInt
		case cfgString:
			doc[key] = v.asString
		}
	}
	return yaml.Marshal(doc)
}
