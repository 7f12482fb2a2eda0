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
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// AbstractDatabaseManager owns one Bun connection and the schema and seed
// steps that run against it.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Ping(ctx context.Context) error
	GetDB() *bun.DB
	RunMigrations(ctx context.Context) error
	InitData(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// DBStats mirrors database/sql pool statistics.
type DBStats struct {
	MaxOpenConns int           `json:"max_open_conns"`
	OpenConns    int           `json:"open_conns"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

// ConnectionConfig describes how to reach a database and tune its pool.
type ConnectionConfig struct {
	Type            string        `yaml:"type" json:"type"` // postgres, mysql, sqlite
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"-"`
	DBName          string        `yaml:"dbname" json:"dbname"` // sqlite: file name without .db, or :memory:
	SSLMode         string        `yaml:"sslmode" json:"sslmode"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	EnableQueryLog  bool          `yaml:"enable_query_log" json:"enable_query_log"`
	EnableColorLog  bool          `yaml:"enable_color_log" json:"enable_color_log"`
	SlowQueryTime   time.Duration `yaml:"slow_query_time" json:"slow_query_time"`
}

// DataMigrateConfig controls schema creation on startup.
type DataMigrateConfig struct {
	EnableMigrateOnStartup bool   `yaml:"enable_migrate_on_startup" json:"enable_migrate_on_startup"`
	EnableForeignKey       bool   `yaml:"enable_foreign_key" json:"enable_foreign_key"`
	ForeignKeyFile         string `yaml:"foreign_key_file" json:"foreign_key_file"`
}

// DataInitConfig controls SQL seeding.
type DataInitConfig struct {
	AutoInitOnMigration bool   `yaml:"auto_init_on_migration" json:"auto_init_on_migration"`
	Filepath            string `yaml:"filepath" json:"filepath"`
	Environment         string `yaml:"environment" json:"environment"`
}

// Single-result policies for derived queries that find no row.
const (
	SingleResultError = "error"
	SingleResultEmpty = "empty"
)

// QueryConfig tunes derived-query execution.
type QueryConfig struct {
	// SingleResultPolicy is "error" (ErrNotFound) or "empty" (nil result).
	SingleResultPolicy string `yaml:"single_result_policy" json:"single_result_policy"`
	// ReadOnlyTransactions runs reads in read-only transactions where the
	// dialect supports them.
	ReadOnlyTransactions bool `yaml:"read_only_transactions" json:"read_only_transactions"`
	// DeclarationFile optionally lists extra method declarations in YAML.
	DeclarationFile string `yaml:"declaration_file" json:"declaration_file"`
}

// Config aggregates every database setting.
type Config struct {
	ConnectionConfig  ConnectionConfig  `yaml:"connection" json:"connection"`
	DataMigrateConfig DataMigrateConfig `yaml:"migrate" json:"migrate"`
	DataInitConfig    DataInitConfig    `yaml:"data_init" json:"data_init"`
	QueryConfig       QueryConfig       `yaml:"query" json:"query"`
}

// DefaultConnectionConfig returns a connection config with pool defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		ConnectTimeout:  time.Second * 10,
		ReadTimeout:     time.Second * 30,
		WriteTimeout:    time.Second * 30,
		SlowQueryTime:   time.Second * 2,
	}
}

// DefaultConfig returns an in-memory SQLite configuration with the query
// defaults applied.
func DefaultConfig() *Config {
	conn := DefaultConnectionConfig()
	conn.Type = "sqlite"
	conn.DBName = MemoryDBName
	return &Config{
		ConnectionConfig: *conn,
		QueryConfig: QueryConfig{
			SingleResultPolicy:   SingleResultError,
			ReadOnlyTransactions: true,
		},
	}
}

// LoadConfig reads a YAML configuration file over DefaultConfig and then
// applies DB_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	OverrideFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.ConnectionConfig.Type {
	case "mysql", "postgres", "postgresql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unsupported database type: %q, supported types: mysql, postgres, sqlite", c.ConnectionConfig.Type)
	}
	switch c.QueryConfig.SingleResultPolicy {
	case "":
		c.QueryConfig.SingleResultPolicy = SingleResultError
	case SingleResultError, SingleResultEmpty:
	default:
		return fmt.Errorf("invalid single_result_policy %q, expected %q or %q",
			c.QueryConfig.SingleResultPolicy, SingleResultError, SingleResultEmpty)
	}
	return nil
}

// OverrideFromEnv overrides connection settings from DB_* variables.
func OverrideFromEnv(cfg *Config) {
	c := &cfg.ConnectionConfig
	if v := os.Getenv("DB_TYPE"); v != "" {
		c.Type = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("DB_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		c.SSLMode = v
	}
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxOpenConns = n
		}
	}
	if v := os.Getenv("DB_ENABLE_QUERY_LOG"); v != "" {
		c.EnableQueryLog = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("DB_SINGLE_RESULT_POLICY"); v != "" {
		cfg.QueryConfig.SingleResultPolicy = strings.ToLower(v)
	}
}
