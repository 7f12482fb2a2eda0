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
)

func TestParseValue(t *testing.T) {
	v, err := ParseValue(IntegerParam, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = ParseValue(DateParam, "1990-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC), v)

	v, err = ParseValue(ListOf(StringParam), "a@x.com, b@x.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, v)

	v, err = ParseValue(ListOf(IntegerParam), "")
	require.NoError(t, err)
	assert.Equal(t, []int64{}, v)

	v, err = ParseValue(StringParam, "null")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ParseValue(BoolParam, "maybe")
	assert.Error(t, err)

	_, err = ParseValue(ListOf(FloatParam), "1.5,x")
	assert.Error(t, err)
}

func TestParsedValuesBind(t *testing.T) {
	plan, err := Derive(personEntity(), Method{Name: "getByEmailInOrBirthLessThan", Params: []Param{
		{Name: "emails", Type: ListOf(StringParam)},
		{Name: "birth", Type: DateParam},
	}})
	require.NoError(t, err)

	emails, err := ParseValue(ListOf(StringParam), "a@x.com")
	require.NoError(t, err)
	birth, err := ParseValue(DateParam, "2000-01-01")
	require.NoError(t, err)

	_, err = plan.Bind(emails, birth)
	assert.NoError(t, err)
}

func TestParseParamType(t *testing.T) {
	p, err := ParseParamType("list<Int>")
	require.NoError(t, err)
	assert.Equal(t, ListOf(IntegerParam), p)

	_, err = ParseParamType("uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want one of string, int, float, bool, date")
}
