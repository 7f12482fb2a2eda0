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

package repository

import (
	"fmt"
	"os"

	"github.com/tomoncle/derive/query"
	"gopkg.in/yaml.v3"
)

// Declarations is the YAML layout of a method declaration file:
//
//	entity: Person
//	methods:
//	  - name: getByLastName
//	    params:
//	      - {name: lastName, type: string}
//	  - name: updatePersonEmail
//	    query: UPDATE Person p SET p.email = :email WHERE p.id = :id
//	    modifying: true
//	    params:
//	      - {name: email, type: string}
//	      - {name: id, type: integer}
type Declarations struct {
	Entity  string         `yaml:"entity"`
	Methods []query.Method `yaml:"methods"`
}

// ParseDeclarations decodes a declaration document.
func ParseDeclarations(data []byte) (*Declarations, error) {
	var d Declarations
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse method declarations: %w", err)
	}
	for i, m := range d.Methods {
		if m.Name == "" {
			return nil, fmt.Errorf("method declaration %d has no name", i+1)
		}
	}
	return &d, nil
}

// LoadDeclarations reads a declaration file from disk.
func LoadDeclarations(path string) (*Declarations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read method declarations %s: %w", path, err)
	}
	return ParseDeclarations(data)
}
