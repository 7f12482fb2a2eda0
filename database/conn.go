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

	"github.com/uptrace/bun"
)

var globalFactory *BaseDatabaseFactory

// GetDB returns the process-wide Bun database, or nil before InitDB.
func GetDB() *bun.DB {
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetDB()
}

// GetConfig returns the configuration passed to InitDB.
func GetConfig() *Config {
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetConfig()
}

// InitDB connects the process-wide database and migrates when the
// configuration asks for it.
func InitDB(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewDatabaseFactory()
	if _, err := factory.CreateFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx, cfg.DataMigrateConfig.EnableMigrateOnStartup); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	globalFactory = factory
	return factory.GetDB(), nil
}

// CloseDB closes the process-wide database.
func CloseDB() error {
	if globalFactory == nil {
		return nil
	}
	err := globalFactory.Close()
	globalFactory = nil
	return err
}

// RunMigrations migrates the process-wide database.
func RunMigrations(ctx context.Context) error {
	if globalFactory == nil || globalFactory.GetManager() == nil {
		return fmt.Errorf("database not initialized")
	}
	return globalFactory.GetManager().RunMigrations(ctx)
}

// InitData seeds the process-wide database from the configured SQL files.
func InitData(ctx context.Context) error {
	if globalFactory == nil || globalFactory.GetManager() == nil {
		return fmt.Errorf("database not initialized")
	}
	return globalFactory.GetManager().InitData(ctx)
}

// GetDatabaseStats returns pool statistics of the process-wide database.
func GetDatabaseStats() *DBStats {
	if globalFactory == nil || globalFactory.GetManager() == nil {
		return &DBStats{}
	}
	return globalFactory.GetManager().GetStats()
}
