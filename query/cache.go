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
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// Cache memoizes plans per entity and method declaration. Entries are
// never evicted; a plan, once stored, is shared by every caller.
type Cache struct {
	plans *xsync.MapOf[string, *Plan]
}

func NewCache() *Cache {
	return &Cache{plans: xsync.NewMapOf[string, *Plan]()}
}

// Plan returns the cached plan for m on entity, deriving it on first use.
// Derivation errors are returned and not cached.
func (c *Cache) Plan(entity *Entity, m Method) (*Plan, error) {
	key := cacheKey(entity, m)
	if p, ok := c.plans.Load(key); ok {
		return p, nil
	}
	p, err := Derive(entity, m)
	if err != nil {
		return nil, err
	}
	actual, _ := c.plans.LoadOrStore(key, p)
	return actual, nil
}

// Size is the number of cached plans.
func (c *Cache) Size() int { return c.plans.Size() }

func cacheKey(entity *Entity, m Method) string {
	var b strings.Builder
	b.WriteString(entity.Name)
	b.WriteByte('|')
	b.WriteString(entity.Table)
	b.WriteByte('|')
	b.WriteString(m.Signature())
	return b.String()
}
