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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func method(name string, params ...Param) Method {
	return Method{Name: name, Params: params}
}

func TestDeriveChecksDeclaredParameters(t *testing.T) {
	entity := personEntity()

	_, err := Derive(entity, method("getByLastNameStartingWithAndIdLessThan",
		Param{"lastName", StringParam}))
	assert.ErrorIs(t, err, ErrArityMismatch)

	_, err = Derive(entity, method("getByLastNameStartingWithAndIdLessThan",
		Param{"lastName", StringParam}, Param{"id", StringParam}))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = Derive(entity, method("getByEmailInOrBirthLessThan",
		Param{"emails", StringParam}, Param{"birth", DateParam}))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	plan, err := Derive(entity, method("getByEmailInOrBirthLessThan",
		Param{"emails", ListOf(StringParam)}, Param{"birth", DateParam}))
	require.NoError(t, err)
	assert.Equal(t, KindSelect, plan.Kind)
	assert.False(t, plan.Annotated())
}

func TestDeriveMutatingGate(t *testing.T) {
	entity := personEntity()

	_, err := Derive(entity, method("deleteByLastName", Param{"lastName", StringParam}))
	assert.ErrorIs(t, err, ErrReadOnlyViolation)

	m := method("deleteByLastName", Param{"lastName", StringParam})
	m.Modifying = true
	plan, err := Derive(entity, m)
	require.NoError(t, err)
	assert.True(t, plan.Kind.Mutating())

	m = method("getByLastName", Param{"lastName", StringParam})
	m.Modifying = true
	_, err = Derive(entity, m)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestBindChecksArguments(t *testing.T) {
	plan, err := Derive(personEntity(), method("getByLastNameStartingWithAndIdLessThan",
		Param{"lastName", StringParam}, Param{"id", IntegerParam}))
	require.NoError(t, err)

	_, err = plan.Bind("Sm")
	assert.ErrorIs(t, err, ErrArityMismatch)

	_, err = plan.Bind("Sm", "5")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = plan.Bind(12, 5)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	bound, err := plan.Bind("Sm", 5)
	require.NoError(t, err)
	assert.Equal(t, []any{"Sm", 5}, bound.Args)
}

func TestBoundWhere(t *testing.T) {
	entity := personEntity()

	plan, err := Derive(entity, method("getByLastNameStartingWithAndIdLessThan",
		Param{"lastName", StringParam}, Param{"id", IntegerParam}))
	require.NoError(t, err)
	bound, err := plan.Bind("50%_off", int64(5))
	require.NoError(t, err)
	where, args := bound.Where()
	assert.Equal(t, "? LIKE ? ESCAPE '!' AND ? < ?", where)
	assert.Equal(t, []any{bun.Ident("p.last_name"), "50!%!_off%", bun.Ident("p.id"), int64(5)}, args)

	plan, err = Derive(entity, method("getByLastNameEndingWithAndIdLessThan",
		Param{"lastName", StringParam}, Param{"id", IntegerParam}))
	require.NoError(t, err)
	bound, err = plan.Bind("son", 3)
	require.NoError(t, err)
	_, args = bound.Where()
	assert.Equal(t, "%son", args[1])

	plan, err = Derive(entity, method("getByAddress_IdGreaterThan", Param{"id", IntegerParam}))
	require.NoError(t, err)
	bound, err = plan.Bind(2)
	require.NoError(t, err)
	where, args = bound.Where()
	assert.Equal(t, "? > ?", where)
	assert.Equal(t, []any{bun.Ident("address.id"), 2}, args)
	assert.Equal(t, []string{"Address"}, plan.Relations())

	plan, err = Derive(entity, method("getByAddressIdGreaterThan", Param{"id", IntegerParam}))
	require.NoError(t, err)
	bound, err = plan.Bind(2)
	require.NoError(t, err)
	_, args = bound.Where()
	assert.Equal(t, bun.Ident("p.address_id"), args[0])
	assert.Empty(t, plan.Relations())
}

func TestBoundWhereSpecialValues(t *testing.T) {
	entity := personEntity()

	plan, err := Derive(entity, method("findByEmail", Param{"email", StringParam}))
	require.NoError(t, err)
	bound, err := plan.Bind(nil)
	require.NoError(t, err)
	where, args := bound.Where()
	assert.Equal(t, "? IS NULL", where)
	assert.Equal(t, []any{bun.Ident("p.email")}, args)

	plan, err = Derive(entity, method("getByEmailInOrBirthLessThan",
		Param{"emails", ListOf(StringParam)}, Param{"birth", DateParam}))
	require.NoError(t, err)
	bound, err = plan.Bind([]string{}, time.Now())
	require.NoError(t, err)
	where, args = bound.Where()
	assert.Equal(t, "1 = 0 OR ? < ?", where)
	assert.Len(t, args, 2)

	bound, err = plan.Bind([]string{"a@x.io", "b@x.io"}, time.Now())
	require.NoError(t, err)
	where, args = bound.Where()
	assert.Equal(t, "? IN (?) OR ? < ?", where)
	assert.Len(t, args, 4)

	plan, err = Derive(entity, method("findByLastNameOrEmailAndActiveTrue",
		Param{"lastName", StringParam}, Param{"email", StringParam}))
	require.NoError(t, err)
	bound, err = plan.Bind("a", "b")
	require.NoError(t, err)
	where, _ = bound.Where()
	assert.Equal(t, "? = ? OR ? = ? AND ? = ?", where)

	plan, err = Derive(entity, method("findByLastNameIgnoreCase", Param{"lastName", StringParam}))
	require.NoError(t, err)
	bound, err = plan.Bind("smith")
	require.NoError(t, err)
	where, _ = bound.Where()
	assert.Equal(t, "UPPER(?) = UPPER(?)", where)
}

func TestIgnoreCaseReachesEveryOperator(t *testing.T) {
	entity := personEntity()
	tests := []struct {
		method Method
		args   []any
		plan   string
		where  string
		nargs  int
	}{
		{
			method("findByEmailInIgnoreCase", Param{"emails", ListOf(StringParam)}),
			[]any{[]string{"A@x.io", "b@x.io"}},
			"UPPER(email) IN (UPPER(?1))",
			"UPPER(?) IN (UPPER(?), UPPER(?))",
			3,
		},
		{
			method("findByEmailNotInIgnoreCase", Param{"emails", ListOf(StringParam)}),
			[]any{[]string{"a@x.io"}},
			"UPPER(email) NOT IN (UPPER(?1))",
			"UPPER(?) NOT IN (UPPER(?))",
			2,
		},
		{
			method("findByLastNameGreaterThanEqualIgnoreCase", Param{"lastName", StringParam}),
			[]any{"m"},
			"UPPER(lastName) >= UPPER(?1)",
			"UPPER(?) >= UPPER(?)",
			2,
		},
		{
			method("findByLastNameBetweenIgnoreCase", Param{"from", StringParam}, Param{"to", StringParam}),
			[]any{"a", "c"},
			"UPPER(lastName) BETWEEN UPPER(?1) AND UPPER(?2)",
			"UPPER(?) BETWEEN UPPER(?) AND UPPER(?)",
			3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.method.Name, func(t *testing.T) {
			plan, err := Derive(entity, tt.method)
			require.NoError(t, err)
			assert.Contains(t, plan.String(), tt.plan)

			bound, err := plan.Bind(tt.args...)
			require.NoError(t, err)
			where, args := bound.Where()
			assert.Equal(t, tt.where, where)
			assert.Len(t, args, tt.nargs)
		})
	}
}

func TestOrderRefs(t *testing.T) {
	entity := personEntity()

	plan, err := Derive(entity, method("findAll"))
	require.NoError(t, err)
	assert.Equal(t, []OrderRef{{Column: "p.id"}}, plan.OrderRefs())

	plan, err = Derive(entity, method("findByOrderByAddressCityDescLastName"))
	require.NoError(t, err)
	assert.Equal(t, []OrderRef{{Column: "address.city", Desc: true}, {Column: "p.last_name"}}, plan.OrderRefs())
	assert.Equal(t, []string{"Address"}, plan.Relations())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "50!%!_!!", EscapeLike("50%_!"))
	assert.Equal(t, "plain", EscapeLike("plain"))
}
