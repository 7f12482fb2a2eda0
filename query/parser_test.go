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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personEntity() *Entity {
	address := NewEntity("Address", "jpa_addresses", "a").
		ID("id", "id", TypeInteger).
		Property("city", "city", TypeString).
		Property("province", "province", TypeString)
	return NewEntity("Person", "jpa_persons", "p").
		ID("id", "id", TypeInteger).
		Property("lastName", "last_name", TypeString).
		Property("email", "email", TypeString).
		Property("birth", "birth", TypeDate).
		Property("addressId", "address_id", TypeInteger).
		Property("active", "active", TypeBool).
		BelongsTo("address", "Address", address)
}

func TestParseMethodNamePredicates(t *testing.T) {
	entity := personEntity()
	tests := []struct {
		name   string
		want   string
		params int
	}{
		{"getByLastName", "lastName = ?1", 1},
		{"getByLastNameStartingWithAndIdLessThan", "lastName LIKE ?1% AND id < ?2", 2},
		{"getByLastNameEndingWithAndIdLessThan", "lastName LIKE %?1 AND id < ?2", 2},
		{"getByEmailInOrBirthLessThan", "email IN (?1) OR birth < ?2", 2},
		{"getByAddressIdGreaterThan", "addressId > ?1", 1},
		{"getByAddress_IdGreaterThan", "address.id > ?1", 1},
		{"findByAddressCity", "address.city = ?1", 1},
		{"findByBirthBetween", "birth BETWEEN ?1 AND ?2", 2},
		{"findByEmailIsNull", "email IS NULL", 0},
		{"findByEmailIsNotNull", "email IS NOT NULL", 0},
		{"findByActiveTrue", "active = TRUE", 0},
		{"findByLastNameNot", "lastName <> ?1", 1},
		{"findByLastNameIs", "lastName = ?1", 1},
		{"findByEmailContaining", "email LIKE %?1%", 1},
		{"findByEmailNotIn", "email NOT IN (?1)", 1},
		{"findByBirthAfter", "birth > ?1", 1},
		{"findByLastNameIgnoreCase", "UPPER(lastName) = UPPER(?1)", 1},
		{"findByLastNameAndEmailAllIgnoreCase", "UPPER(lastName) = UPPER(?1) AND UPPER(email) = UPPER(?2)", 2},
		{"findByLastNameAndEmailOrIdGreaterThan", "lastName = ?1 AND email = ?2 OR id > ?3", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := ParseMethodName(entity, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tree.Predicate.String())
			assert.Equal(t, tt.params, tree.Params())
		})
	}
}

func TestParseMethodNameSubject(t *testing.T) {
	entity := personEntity()

	tree, err := ParseMethodName(entity, "findDistinctByLastName")
	require.NoError(t, err)
	assert.True(t, tree.Distinct)
	assert.Equal(t, KindSelect, tree.Kind)

	tree, err = ParseMethodName(entity, "findFirstByOrderByIdDesc")
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Limit)
	assert.Nil(t, tree.Predicate)
	require.Len(t, tree.Orders, 1)
	assert.Equal(t, "id DESC", tree.Orders[0].String())

	tree, err = ParseMethodName(entity, "findTop3ByLastNameOrderByBirthAscIdDesc")
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Limit)
	require.Len(t, tree.Orders, 2)
	assert.Equal(t, "birth ASC", tree.Orders[0].String())
	assert.Equal(t, "id DESC", tree.Orders[1].String())

	tree, err = ParseMethodName(entity, "findAll")
	require.NoError(t, err)
	assert.Nil(t, tree.Predicate)
	assert.Zero(t, tree.Params())

	kinds := map[string]Kind{
		"countByLastName":  KindCount,
		"existsByEmail":    KindExists,
		"deleteByLastName": KindDelete,
		"removeByEmail":    KindDelete,
		"readByEmail":      KindSelect,
		"streamByEmail":    KindSelect,
	}
	for name, kind := range kinds {
		tree, err := ParseMethodName(entity, name)
		require.NoError(t, err, name)
		assert.Equal(t, kind, tree.Kind, name)
	}
}

func TestParseMethodNameErrors(t *testing.T) {
	entity := personEntity()
	for _, name := range []string{
		"fetchByLastName",
		"findByNickname",
		"findBy",
		"findByIdStartingWith",
		"findByBirthIgnoreCase",
		"findByLastNameTrue",
		"deleteByAddressCity",
		"countByIdOrderByLastName",
		"findByLastNameOrderBy",
		"findByAddress_Nickname",
		"findBylastName",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMethodName(entity, name)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnparseableMethodName)
		})
	}
}

func TestDirectPropertyWinsOverCascade(t *testing.T) {
	entity := personEntity()

	direct, err := ParseMethodName(entity, "getByAddressIdGreaterThan")
	require.NoError(t, err)
	leaf := direct.Predicate.(*Leaf)
	assert.False(t, leaf.Path.Cascaded())
	assert.Equal(t, "addressId", leaf.Path.Property.Name)

	cascade, err := ParseMethodName(entity, "getByAddress_IdGreaterThan")
	require.NoError(t, err)
	leaf = cascade.Predicate.(*Leaf)
	require.True(t, leaf.Path.Cascaded())
	assert.Equal(t, "id", leaf.Path.Property.Name)
	assert.Equal(t, "Address", leaf.Path.relationName())

	// without a direct addressId property the same name cascades
	address := NewEntity("Address", "jpa_addresses", "a").ID("id", "id", TypeInteger)
	bare := NewEntity("Person", "jpa_persons", "p").
		ID("id", "id", TypeInteger).
		BelongsTo("address", "Address", address)
	tree, err := ParseMethodName(bare, "getByAddressIdGreaterThan")
	require.NoError(t, err)
	assert.True(t, tree.Predicate.(*Leaf).Path.Cascaded())
}

func TestParseMethodNameIsDeterministic(t *testing.T) {
	entity := personEntity()
	name := "findDistinctByLastNameStartingWithOrEmailInAndBirthBetweenOrderByIdDesc"
	first, err := ParseMethodName(entity, name)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ParseMethodName(entity, name)
		require.NoError(t, err)
		assert.Equal(t, first.Predicate.String(), again.Predicate.String())
		assert.Equal(t, first.Params(), again.Params())
	}
	assert.Equal(t, "lastName LIKE ?1% OR email IN (?2) AND birth BETWEEN ?3 AND ?4", first.Predicate.String())
}
