package sdata

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrUnknownRelation is returned when a relation name does not
	// resolve to any declared field or lookup on the collection.
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrAmbiguousReference is returned when a field carries both a
	// plain reference and an embedded reference, or more than one
	// embedded reference, so no single target collection can be picked.
	ErrAmbiguousReference = errors.New("ambiguous reference")
)

// RelationKind is the closed set of relation variants. It is decided
// once, at classification time; callers dispatch on it and never
// re-inspect the schema.
type RelationKind int8

const (
	// KindReference is a field on the entity holding one or more
	// foreign ids pointing at another collection.
	KindReference RelationKind = iota

	// KindLookup is a computed relation resolved at query time by
	// matching a local field's value against a foreign field in the
	// target collection. No foreign key is stored.
	KindLookup
)

func (k RelationKind) String() string {
	if k == KindLookup {
		return "lookup"
	}
	return "reference"
}

// Relation describes one named relation on a collection. For
// KindReference, Field is the (possibly dotted, for embedded
// references) path of the foreign-key field and Array tells whether
// it holds a set of ids. For KindLookup, LocalField and ForeignField
// carry the join pair.
type Relation struct {
	Name         string
	Kind         RelationKind
	Target       string
	Field        string
	Array        bool
	LocalField   string
	ForeignField string
}

// Ref marks a field as a reference into another collection.
type Ref struct {
	Collection string `yaml:"collection"`
}

// Field is one declared field. Nested Fields model embedded
// documents; a nested field carrying a Ref makes the outer field an
// embedded reference.
type Field struct {
	Name   string  `yaml:"name"`
	Array  bool    `yaml:"array"`
	Ref    *Ref    `yaml:"ref"`
	Fields []Field `yaml:"fields"`
}

// Lookup declares a virtual relation: documents in Collection whose
// ForeignField matches this entity's LocalField value.
type Lookup struct {
	Name         string `yaml:"name"`
	Collection   string `yaml:"collection"`
	LocalField   string `yaml:"local_field"`
	ForeignField string `yaml:"foreign_field"`
}

// Collection is the declared schema of one entity collection.
type Collection struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Fields  []Field  `yaml:"fields"`
	Lookups []Lookup `yaml:"lookups"`
}

// Schema holds the declared collections and answers relation
// classification queries. Classifications are memoized; the schema
// itself is immutable after construction.
type Schema struct {
	collections map[string]*Collection
	relCache    *lru.TwoQueueCache[string, Relation]
}

const relCacheSize = 512

// NewSchema builds a schema from declared collections. Collection
// names left empty are derived from the entity type name.
func NewSchema(cols []Collection) (*Schema, error) {
	s := &Schema{collections: make(map[string]*Collection, len(cols))}

	var err error
	if s.relCache, err = lru.New2Q[string, Relation](relCacheSize); err != nil {
		return nil, err
	}

	for i := range cols {
		c := cols[i]
		if c.Name == "" {
			c.Name = CollectionName(c.Type)
		}
		if c.Name == "" {
			return nil, fmt.Errorf("collection %d: no name or type", i)
		}
		if _, ok := s.collections[c.Name]; ok {
			return nil, fmt.Errorf("duplicate collection: %s", c.Name)
		}
		s.collections[c.Name] = &c
	}
	return s, nil
}

// Collection returns the declared schema for a collection name.
func (s *Schema) Collection(name string) (*Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection: %s", name)
	}
	return c, nil
}

// Collections returns the declared collection names.
func (s *Schema) Collections() []string {
	names := make([]string, 0, len(s.collections))
	for n := range s.collections {
		names = append(names, n)
	}
	return names
}

// Relation classifies a named relation on a collection. It is the
// single source of truth for relation validity: a name that matches
// neither a reference field nor a lookup fails with
// ErrUnknownRelation.
func (s *Schema) Relation(collection, name string) (Relation, error) {
	key := collection + "." + name
	if rel, ok := s.relCache.Get(key); ok {
		return rel, nil
	}

	c, err := s.Collection(collection)
	if err != nil {
		return Relation{}, err
	}

	rel, err := c.classify(name)
	if err != nil {
		return Relation{}, err
	}

	s.relCache.Add(key, rel)
	return rel, nil
}

// Validate checks that every declared relation classifies and that
// every relation target is itself a declared collection.
func (s *Schema) Validate() error {
	for cname, c := range s.collections {
		for _, f := range c.Fields {
			rel, err := c.classify(f.Name)
			if errors.Is(err, ErrUnknownRelation) {
				continue // plain data field
			}
			if err != nil {
				return fmt.Errorf("%s.%s: %w", cname, f.Name, err)
			}
			if _, ok := s.collections[rel.Target]; !ok {
				return fmt.Errorf("%s.%s: unknown target collection %s", cname, f.Name, rel.Target)
			}
		}
		for _, l := range c.Lookups {
			if l.Name == "" || l.Collection == "" || l.LocalField == "" || l.ForeignField == "" {
				return fmt.Errorf("%s: lookup %q: name, collection, local_field and foreign_field are required", cname, l.Name)
			}
			if _, ok := s.collections[l.Collection]; !ok {
				return fmt.Errorf("%s.%s: unknown target collection %s", cname, l.Name, l.Collection)
			}
		}
	}
	return nil
}

// classify resolves a relation name against this collection. Direct
// field paths win over lookups; a field qualifies when it carries
// reference metadata itself or on exactly one nested field.
func (c *Collection) classify(name string) (Relation, error) {
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Name != name {
			continue
		}

		path, target, err := f.refTarget()
		if err != nil {
			return Relation{}, fmt.Errorf("%s.%s: %w", c.Name, name, err)
		}
		if target == "" {
			break // a plain data field shadows nothing
		}
		return Relation{
			Name:   name,
			Kind:   KindReference,
			Target: target,
			Field:  path,
			Array:  f.Array,
		}, nil
	}

	for _, l := range c.Lookups {
		if l.Name != name {
			continue
		}
		return Relation{
			Name:         name,
			Kind:         KindLookup,
			Target:       l.Collection,
			LocalField:   l.LocalField,
			ForeignField: l.ForeignField,
		}, nil
	}

	return Relation{}, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, c.Name, name)
}

// refTarget returns the foreign-key field path and target collection
// of a reference field. A plain reference uses the field itself; an
// embedded reference uses the single nested field that carries ref
// metadata. Both at once, or several nested refs, is ambiguous.
func (f *Field) refTarget() (string, string, error) {
	var path, target string

	if f.Ref != nil {
		path, target = f.Name, f.Ref.Collection
	}

	for i := range f.Fields {
		nf := &f.Fields[i]
		if nf.Ref == nil {
			continue
		}
		if target != "" {
			return "", "", ErrAmbiguousReference
		}
		path, target = f.Name+"."+nf.Name, nf.Ref.Collection
	}
	return path, target, nil
}

// FieldValue reads a possibly dotted field path out of a document.
func FieldValue(doc bson.M, path string) (any, bool) {
	cur := any(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Documents decoded by different drivers nest either bson.M or
// plain maps.
func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]any:
		return t, true
	}
	return nil, false
}
