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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.ConnectionConfig.Type)
	assert.Equal(t, MemoryDBName, cfg.ConnectionConfig.DBName)
	assert.Equal(t, SingleResultError, cfg.QueryConfig.SingleResultPolicy)
	assert.True(t, cfg.QueryConfig.ReadOnlyTransactions)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection:
  type: postgres
  host: db.local
  port: 5432
  dbname: people
  max_open_conns: 5
  slow_query_time: 500ms
migrate:
  enable_migrate_on_startup: true
query:
  single_result_policy: empty
  declaration_file: methods.yaml
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.ConnectionConfig.Type)
	assert.Equal(t, "db.local", cfg.ConnectionConfig.Host)
	assert.Equal(t, 5, cfg.ConnectionConfig.MaxOpenConns)
	assert.Equal(t, 500*time.Millisecond, cfg.ConnectionConfig.SlowQueryTime)
	assert.Equal(t, 10, cfg.ConnectionConfig.MaxIdleConns)
	assert.True(t, cfg.DataMigrateConfig.EnableMigrateOnStartup)
	assert.Equal(t, SingleResultEmpty, cfg.QueryConfig.SingleResultPolicy)
	assert.Equal(t, "methods.yaml", cfg.QueryConfig.DeclarationFile)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("DB_TYPE", "mysql")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_SINGLE_RESULT_POLICY", "EMPTY")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.ConnectionConfig.Type)
	assert.Equal(t, 3307, cfg.ConnectionConfig.Port)
	assert.Equal(t, SingleResultEmpty, cfg.QueryConfig.SingleResultPolicy)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectionConfig.Type = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.QueryConfig.SingleResultPolicy = "first"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.QueryConfig.SingleResultPolicy = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SingleResultError, cfg.QueryConfig.SingleResultPolicy)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?cache=shared", SQLiteDSN(MemoryDBName))
	assert.Equal(t, "file:x?mode=memory", SQLiteDSN("file:x?mode=memory"))
	assert.Equal(t, "people.db", SQLiteDSN("people"))
}
