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
	"fmt"
	"strings"
)

// Param is a declared method parameter.
type Param struct {
	Name string    `yaml:"name" json:"name"`
	Type ParamType `yaml:"type" json:"type"`
}

// Method is a repository method declaration: the name, its ordered
// parameters and, for annotated methods, the query string with its
// native and modifying flags.
type Method struct {
	Name      string  `yaml:"name" json:"name"`
	Params    []Param `yaml:"params,omitempty" json:"params,omitempty"`
	Query     string  `yaml:"query,omitempty" json:"query,omitempty"`
	Native    bool    `yaml:"native,omitempty" json:"native,omitempty"`
	Modifying bool    `yaml:"modifying,omitempty" json:"modifying,omitempty"`
}

// Annotated reports whether the method carries an explicit query string.
func (m Method) Annotated() bool { return strings.TrimSpace(m.Query) != "" }

// Signature identifies the declaration for plan caching.
func (m Method) Signature() string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Name)
		b.WriteByte(' ')
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	if m.Annotated() {
		fmt.Fprintf(&b, "[native=%t,modifying=%t]%s", m.Native, m.Modifying, m.Query)
	} else if m.Modifying {
		b.WriteString("[modifying]")
	}
	return b.String()
}

func (m Method) paramIndex(name string) int {
	for i, p := range m.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}
