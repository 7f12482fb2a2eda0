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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ForeignKeyConstraint describes a foreign key between two tables. It is
// emitted with CREATE TABLE so that it works on every dialect, SQLite
// included.
type ForeignKeyConstraint struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete,omitempty"` // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string `yaml:"on_update,omitempty"`
	ConstraintName  string `yaml:"constraint_name,omitempty"`
}

// Name returns the explicit constraint name or fk_<table>_<column>.
func (fk ForeignKeyConstraint) Name() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// Clause renders the argument of bun's CreateTableQuery.ForeignKey.
func (fk ForeignKeyConstraint) Clause() string {
	clause := fmt.Sprintf("(%s) REFERENCES %s (%s)", fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
	if fk.OnDelete != "" {
		clause += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		clause += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
	}
	return clause
}

var validActions = []string{"CASCADE", "RESTRICT", "SET NULL", "NO ACTION"}

// Validate checks required fields and referential actions.
func (fk ForeignKeyConstraint) Validate() error {
	switch {
	case fk.Table == "":
		return fmt.Errorf("table name cannot be empty")
	case fk.Column == "":
		return fmt.Errorf("column name cannot be empty: %s", fk.Table)
	case fk.ReferenceTable == "":
		return fmt.Errorf("reference table name cannot be empty: %s.%s", fk.Table, fk.Column)
	case fk.ReferenceColumn == "":
		return fmt.Errorf("reference column name cannot be empty: %s.%s -> %s", fk.Table, fk.Column, fk.ReferenceTable)
	}
	for _, action := range []string{fk.OnDelete, fk.OnUpdate} {
		if action == "" {
			continue
		}
		ok := false
		for _, valid := range validActions {
			if strings.EqualFold(action, valid) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("invalid referential action: %s, constraint: %s", action, fk.Name())
		}
	}
	return nil
}

// ForeignKeyConfig is the YAML file layout.
type ForeignKeyConfig struct {
	ForeignKeys []ForeignKeyConstraint `yaml:"foreign_keys"`
}

var (
	codeForeignKeys   []ForeignKeyConstraint
	codeForeignKeysMu sync.RWMutex
)

// RegisterForeignKey adds a code-defined constraint, used when no
// configuration file is given.
func RegisterForeignKey(fk ForeignKeyConstraint) {
	codeForeignKeysMu.Lock()
	defer codeForeignKeysMu.Unlock()
	codeForeignKeys = append(codeForeignKeys, fk)
}

// ForeignKeyManager resolves the constraints to create per table.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

// NewForeignKeyManager loads constraints from configPath and falls back to
// the code-defined ones when the path is empty or missing.
func NewForeignKeyManager(logger Logger, configPath string) (*ForeignKeyManager, error) {
	fkm := &ForeignKeyManager{logger: logger}
	constraints, err := loadForeignKeys(configPath)
	switch {
	case err == nil:
		fkm.constraints = constraints
	case os.IsNotExist(err) || configPath == "":
		if logger != nil && configPath != "" {
			logger.Debug("Foreign key file not found, using code-defined constraints", "config_path", configPath)
		}
		codeForeignKeysMu.RLock()
		fkm.constraints = append([]ForeignKeyConstraint(nil), codeForeignKeys...)
		codeForeignKeysMu.RUnlock()
	default:
		return nil, err
	}

	var problems []string
	for _, fk := range fkm.constraints {
		if err := fk.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("foreign key constraint validation failed: %s", strings.Join(problems, "; "))
	}
	return fkm, nil
}

func loadForeignKeys(path string) ([]ForeignKeyConstraint, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config ForeignKeyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse foreign key file: %w", err)
	}
	return config.ForeignKeys, nil
}

// ForTable returns the constraints declared on table.
func (fkm *ForeignKeyManager) ForTable(table string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, fk := range fkm.constraints {
		if strings.EqualFold(fk.Table, table) {
			result = append(result, fk)
		}
	}
	return result
}

// Constraints returns every configured constraint.
func (fkm *ForeignKeyManager) Constraints() []ForeignKeyConstraint {
	return fkm.constraints
}

// Export writes the constraints as YAML to outputPath.
func (fkm *ForeignKeyManager) Export(outputPath string) error {
	data, err := yaml.Marshal(&ForeignKeyConfig{ForeignKeys: fkm.constraints})
	if err != nil {
		return fmt.Errorf("failed to serialize foreign keys: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(outputPath, data, 0644)
}
