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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequestDefaults(t *testing.T) {
	p := NewDefaultPageRequest(0, 0)
	assert.Equal(t, 1, p.GetPage())
	assert.Equal(t, 10, p.GetPageSize())
	assert.Equal(t, 0, p.GetOffset())

	p = NewPageRequestWithOrders(3, 20, []string{"p.last_name DESC"})
	assert.Equal(t, 40, p.GetOffset())
	assert.Nil(t, p.GetFilter())
	assert.Equal(t, []string{"p.last_name DESC"}, p.GetOrders())
}

func TestPaginationPages(t *testing.T) {
	p := NewDefaultPagination[struct{}](1, 3)
	assert.Equal(t, 0, p.TotalPages())
	assert.False(t, p.HasNext())

	p.Total = 7
	assert.Equal(t, 3, p.TotalPages())
	assert.True(t, p.HasNext())

	p.Page = 3
	assert.False(t, p.HasNext())
}

func TestJsonObjectValueScan(t *testing.T) {
	obj := JsonObject{"method": "getByLastName", "modifying": false}
	v, err := obj.Value()
	require.NoError(t, err)

	var back JsonObject
	require.NoError(t, back.Scan(v))
	assert.Equal(t, "getByLastName", back["method"])
	assert.Equal(t, []string{"method", "modifying"}, back.Keys())

	require.NoError(t, back.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, float64(1), back["a"])

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back)

	assert.Error(t, back.Scan(42))

	v, err = JsonObject(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

type level int

func (l level) IsValid() bool  { return l >= 0 && l < 2 }
func (l level) Number() int    { return int(l) }
func (l level) String() string { return l.Name() }
func (l level) Desc() string   { return l.Name() }
func (l level) Name() string {
	switch l {
	case 0:
		return "low"
	case 1:
		return "high"
	}
	return IllegalName
}

func TestEnumNamesSkipsInvalidValues(t *testing.T) {
	assert.Equal(t, []string{"low", "high"}, EnumNames(level(0), level(7), level(1)))
	assert.Empty(t, EnumNames[level]())
}
