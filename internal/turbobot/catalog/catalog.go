// Package catalog holds the lookup tables for values owned by the account
// service: ticket names, user setting labels, permission levels and arcade
// display-name fix-ups.
//
// The tables are data, not logic. An embedded catalog.yaml is used unless a
// replacement file is supplied; either way the document is validated against
// catalog.schema.json before use.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

//go:embed catalog.schema.json
var schemaJSON []byte

const schemaURL = "catalog.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Ticket is one entry of the ticket table.
type Ticket struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type document struct {
	Tickets       []Ticket          `yaml:"tickets"`
	DefaultTicket string            `yaml:"default_ticket"`
	Settings      map[string]string `yaml:"settings"`
	Permissions   map[string]string `yaml:"permissions"`
	ArcadeNames   map[string]string `yaml:"arcade_names"`
}

// Catalog is immutable after load and safe for concurrent use.
type Catalog struct {
	tickets       map[int]string
	defaultTicket string
	settings      map[string]string
	permissions   map[string]string
	arcadeNames   map[string]string
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Default returns the embedded catalog. The embedded file is part of the
// build, so a failure here is a programming error.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog invalid: %v", err))
	}
	return c
}

// Parse validates and decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		tickets:       make(map[int]string, len(doc.Tickets)),
		defaultTicket: doc.DefaultTicket,
		settings:      nonNil(doc.Settings),
		permissions:   nonNil(doc.Permissions),
		arcadeNames:   nonNil(doc.ArcadeNames),
	}
	for _, t := range doc.Tickets {
		if _, dup := c.tickets[t.ID]; dup {
			return nil, fmt.Errorf("duplicate ticket id %d", t.ID)
		}
		c.tickets[t.ID] = t.Name
	}
	return c, nil
}

// validate round-trips the YAML through JSON so the schema sees plain JSON
// values.
func validate(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("catalog is empty")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("catalog is not representable as JSON: %w", err)
	}
	// The validator expects json.Number for numeric instances.
	var doc any
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("catalog is not representable as JSON: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("catalog schema: %w", err)
	}
	return nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load catalog schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile catalog schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Ticket returns the display name of a ticket id, or the default ("没有票")
// for unknown ids.
func (c *Catalog) Ticket(id int) string {
	if name, ok := c.tickets[id]; ok {
		return name
	}
	return c.defaultTicket
}

// Setting returns the label of a user setting key, or the key itself.
func (c *Catalog) Setting(key string) string {
	if name, ok := c.settings[key]; ok {
		return name
	}
	return key
}

// Permission returns the label of a permission level, or the level itself.
func (c *Catalog) Permission(level string) string {
	if name, ok := c.permissions[level]; ok {
		return name
	}
	return level
}

// ArcadeName applies the display-name fix-up table.
func (c *Catalog) ArcadeName(name string) string {
	if fixed, ok := c.arcadeNames[name]; ok {
		return fixed
	}
	return name
}
