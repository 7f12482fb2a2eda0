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

package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeignKeyClause(t *testing.T) {
	fk := ForeignKeyConstraint{
		Table:           "jpa_persons",
		Column:          "address_id",
		ReferenceTable:  "jpa_addresses",
		ReferenceColumn: "id",
		OnDelete:        "set null",
	}
	require.NoError(t, fk.Validate())
	assert.Equal(t, "fk_jpa_persons_address_id", fk.Name())
	assert.Equal(t, "(address_id) REFERENCES jpa_addresses (id) ON DELETE SET NULL", fk.Clause())

	fk.OnUpdate = "explode"
	assert.Error(t, fk.Validate())
	assert.Error(t, ForeignKeyConstraint{Table: "t"}.Validate())
}

func TestForeignKeyManagerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign_keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
foreign_keys:
  - table: jpa_persons
    column: address_id
    reference_table: jpa_addresses
    reference_column: id
    on_delete: CASCADE
`), 0o644))

	fkm, err := NewForeignKeyManager(nil, path)
	require.NoError(t, err)
	require.Len(t, fkm.ForTable("JPA_PERSONS"), 1)
	assert.Empty(t, fkm.ForTable("jpa_addresses"))

	out := filepath.Join(t.TempDir(), "export", "fk.yaml")
	require.NoError(t, fkm.Export(out))
	again, err := NewForeignKeyManager(nil, out)
	require.NoError(t, err)
	assert.Equal(t, fkm.Constraints(), again.Constraints())
}

func TestForeignKeyManagerInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign_keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
foreign_keys:
  - table: jpa_persons
    column: address_id
`), 0o644))

	_, err := NewForeignKeyManager(nil, path)
	assert.Error(t, err)
}
