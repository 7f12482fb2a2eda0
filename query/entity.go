/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/uptrace/bun/schema"
)

// Property is a persistent attribute of an entity.
type Property struct {
	Name       string
	Column     string
	Type       SemanticType
	PrimaryKey bool
}

// Relationship is a to-one reference from one entity to another
// (Person -> Address). Field is the Go field name Bun joins through and
// JoinAlias the table alias Bun gives the joined table.
type Relationship struct {
	Name      string
	Field     string
	JoinAlias string
	Target    *Entity
}

// Entity describes a mapped record type: its properties and to-one
// relationships. An Entity is immutable once handed to the deriver.
type Entity struct {
	Name  string
	Table string
	Alias string

	properties []*Property
	byName     map[string]*Property
	relations  map[string]*Relationship
	relOrder   []string
}

// NewEntity returns an empty entity mapped to table with the given alias.
func NewEntity(name, table, alias string) *Entity {
	if alias == "" {
		alias = table
	}
	return &Entity{
		Name:      name,
		Table:     table,
		Alias:     alias,
		byName:    make(map[string]*Property),
		relations: make(map[string]*Relationship),
	}
}

// Property adds a property to the entity.
func (e *Entity) Property(name, column string, t SemanticType) *Entity {
	p := &Property{Name: name, Column: column, Type: t}
	e.properties = append(e.properties, p)
	e.byName[name] = p
	return e
}

// ID adds the primary-key property.
func (e *Entity) ID(name, column string, t SemanticType) *Entity {
	e.Property(name, column, t)
	e.byName[name].PrimaryKey = true
	return e
}

// BelongsTo adds a to-one relationship named name reached through the Go
// field goField.
func (e *Entity) BelongsTo(name, goField string, target *Entity) *Entity {
	e.relations[name] = &Relationship{
		Name:      name,
		Field:     goField,
		JoinAlias: snakeCase(goField),
		Target:    target,
	}
	e.relOrder = append(e.relOrder, name)
	return e
}

// Properties returns the entity properties in declaration order.
func (e *Entity) Properties() []*Property {
	out := make([]*Property, len(e.properties))
	copy(out, e.properties)
	return out
}

// Relationships returns the entity relationships in declaration order.
func (e *Entity) Relationships() []*Relationship {
	out := make([]*Relationship, 0, len(e.relOrder))
	for _, name := range e.relOrder {
		out = append(out, e.relations[name])
	}
	return out
}

// Lookup returns the property with the given name.
func (e *Entity) Lookup(name string) (*Property, bool) {
	p, ok := e.byName[name]
	return p, ok
}

// Relation returns the relationship with the given name.
func (e *Entity) Relation(name string) (*Relationship, bool) {
	r, ok := e.relations[name]
	return r, ok
}

// PrimaryKey returns the first primary-key property, or nil.
func (e *Entity) PrimaryKey() *Property {
	for _, p := range e.properties {
		if p.PrimaryKey {
			return p
		}
	}
	return nil
}

// PropertyPath is a property reached from a root entity, possibly through
// a chain of relationships.
type PropertyPath struct {
	Relations []*Relationship
	Property  *Property
}

// String renders the path in dotted property form, e.g. address.id.
func (p *PropertyPath) String() string {
	parts := make([]string, 0, len(p.Relations)+1)
	for _, r := range p.Relations {
		parts = append(parts, r.Name)
	}
	return strings.Join(append(parts, p.Property.Name), ".")
}

// Cascaded reports whether the path traverses a relationship.
func (p *PropertyPath) Cascaded() bool { return len(p.Relations) > 0 }

// relationName is the Bun relation name for the traversed chain, e.g.
// "Address" or "Address.City".
func (p *PropertyPath) relationName() string {
	parts := make([]string, len(p.Relations))
	for i, r := range p.Relations {
		parts[i] = r.Field
	}
	return strings.Join(parts, ".")
}

// columnRef is the qualified column reference used in generated SQL.
func (p *PropertyPath) columnRef(root *Entity) string {
	if !p.Cascaded() {
		return root.Alias + "." + p.Property.Column
	}
	aliases := make([]string, len(p.Relations))
	for i, r := range p.Relations {
		aliases[i] = r.JoinAlias
	}
	return strings.Join(aliases, "__") + "." + p.Property.Column
}

// ResolvePath resolves a capitalized method-name segment such as
// "LastName", "AddressId" or "Address_Id" against the entity.
//
// An underscore forces traversal of a relationship. Without one, a direct
// property wins; only when none exists is the segment split on camel-case
// boundaries, longest relationship prefix first.
func (e *Entity) ResolvePath(segment string) (*PropertyPath, error) {
	if segment == "" || !unicode.IsUpper(rune(segment[0])) {
		return nil, fmt.Errorf("%w: property segment %q must start with an uppercase letter", ErrUnparseableMethodName, segment)
	}
	path, ok := e.resolve(segment, map[*Entity]bool{})
	if !ok {
		return nil, fmt.Errorf("%w: no property %q found on %s", ErrUnparseableMethodName, uncapitalize(segment), e.Name)
	}
	return path, nil
}

func (e *Entity) resolve(segment string, visiting map[*Entity]bool) (*PropertyPath, bool) {
	if segment == "" || visiting[e] {
		return nil, false
	}
	visiting[e] = true
	defer delete(visiting, e)

	if i := strings.IndexByte(segment, '_'); i >= 0 {
		rel, ok := e.relations[uncapitalize(segment[:i])]
		if !ok {
			return nil, false
		}
		rest, ok := rel.Target.resolve(segment[i+1:], visiting)
		if !ok {
			return nil, false
		}
		return &PropertyPath{Relations: append([]*Relationship{rel}, rest.Relations...), Property: rest.Property}, true
	}

	if p, ok := e.byName[uncapitalize(segment)]; ok {
		return &PropertyPath{Property: p}, true
	}

	for i := len(segment) - 1; i > 0; i-- {
		if !unicode.IsUpper(rune(segment[i])) {
			continue
		}
		rel, ok := e.relations[uncapitalize(segment[:i])]
		if !ok {
			continue
		}
		if rest, ok := rel.Target.resolve(segment[i:], visiting); ok {
			return &PropertyPath{Relations: append([]*Relationship{rel}, rest.Relations...), Property: rest.Property}, true
		}
	}
	return nil, false
}

// EntityFromTable builds an entity from Bun's table metadata. Properties
// are named in lower camel case after the Go field (LastName -> lastName,
// AddressID -> addressId). Belongs-to and has-one relations become
// relationships; to-many relations are ignored.
func EntityFromTable(t *schema.Table) *Entity {
	return entityFromTable(t, map[*schema.Table]*Entity{})
}

func entityFromTable(t *schema.Table, seen map[*schema.Table]*Entity) *Entity {
	if e, ok := seen[t]; ok {
		return e
	}
	e := NewEntity(t.Type.Name(), t.Name, t.Alias)
	seen[t] = e

	for _, f := range t.Fields {
		typ := SemanticTypeOf(f.StructField.Type)
		if typ == TypeUnknown {
			continue
		}
		if f.IsPK {
			e.ID(lowerCamel(f.GoName), f.Name, typ)
		} else {
			e.Property(lowerCamel(f.GoName), f.Name, typ)
		}
	}

	names := make([]string, 0, len(t.Relations))
	for name := range t.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rel := t.Relations[name]
		if rel.Type != schema.BelongsToRelation && rel.Type != schema.HasOneRelation {
			continue
		}
		target := entityFromTable(rel.JoinTable, seen)
		e.relations[lowerCamel(name)] = &Relationship{
			Name:      lowerCamel(name),
			Field:     name,
			JoinAlias: rel.Field.Name,
			Target:    target,
		}
		e.relOrder = append(e.relOrder, lowerCamel(name))
	}
	return e
}

// TableSource resolves Bun table metadata; *bun.DB implements it.
type TableSource interface {
	Table(reflect.Type) *schema.Table
}

// EntityOf is a convenience wrapper that reads the Bun table of model's
// type from tables (typically a *bun.DB).
func EntityOf(tables TableSource, model interface{}) *Entity {
	typ := reflect.TypeOf(model)
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}
	return EntityFromTable(tables.Table(typ))
}

func uncapitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// splitWords splits a Go identifier into words, keeping acronyms together:
// "AddressID" -> [Address ID], "URLPath" -> [URL Path].
func splitWords(s string) []string {
	r := []rune(s)
	var words []string
	start := 0
	for i := 1; i < len(r); i++ {
		prev, cur := r[i-1], r[i]
		var next rune
		if i+1 < len(r) {
			next = r[i+1]
		}
		boundary := unicode.IsLower(prev) && unicode.IsUpper(cur) ||
			unicode.IsUpper(prev) && unicode.IsUpper(cur) && next != 0 && unicode.IsLower(next) ||
			unicode.IsDigit(prev) != unicode.IsDigit(cur)
		if boundary {
			words = append(words, string(r[start:i]))
			start = i
		}
	}
	return append(words, string(r[start:]))
}

func lowerCamel(goName string) string {
	words := splitWords(goName)
	for i, w := range words {
		w = strings.ToLower(w)
		if i > 0 {
			w = capitalize(w)
		}
		words[i] = w
	}
	return strings.Join(words, "")
}

func snakeCase(goName string) string {
	words := splitWords(goName)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_")
}
