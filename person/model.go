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

package person

import (
	"time"

	"github.com/tomoncle/derive/database"
	"github.com/uptrace/bun"
)

// Address is a postal address a person may belong to.
type Address struct {
	bun.BaseModel `bun:"table:jpa_addresses,alias:a"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	City     string `bun:"city" json:"city"`
	Province string `bun:"province" json:"province"`
}

// Person is the root entity of the derived repository.
type Person struct {
	bun.BaseModel `bun:"table:jpa_persons,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	LastName  string    `bun:"last_name,notnull" json:"last_name"`
	Email     string    `bun:"email,nullzero" json:"email,omitempty"`
	Birth     time.Time `bun:"birth,nullzero" json:"birth,omitempty"`
	AddressID int64     `bun:"address_id,nullzero" json:"address_id,omitempty"`

	Address *Address `bun:"rel:belongs-to,join:address_id=id" json:"address,omitempty"`
}

func init() {
	database.RegisteredModel(database.NewModelAdapter((*Address)(nil), 10))
	database.RegisteredModel(database.NewModelAdapter((*Person)(nil), 20))
	database.RegisterForeignKey(database.ForeignKeyConstraint{
		Table:           "jpa_persons",
		Column:          "address_id",
		ReferenceTable:  "jpa_addresses",
		ReferenceColumn: "id",
		OnDelete:        "SET NULL",
	})
}
