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

import "github.com/tomoncle/derive/query"

// Methods declares the derived and annotated methods of the Person
// repository. Names follow the derivation grammar; annotated methods
// carry their query string.
var Methods = []query.Method{
	{Name: "getByLastName", Params: []query.Param{
		{Name: "lastName", Type: query.StringParam},
	}},
	{Name: "getByLastNameStartingWithAndIdLessThan", Params: []query.Param{
		{Name: "lastName", Type: query.StringParam},
		{Name: "id", Type: query.IntegerParam},
	}},
	{Name: "getByLastNameEndingWithAndIdLessThan", Params: []query.Param{
		{Name: "lastName", Type: query.StringParam},
		{Name: "id", Type: query.IntegerParam},
	}},
	{Name: "getByEmailInOrBirthLessThan", Params: []query.Param{
		{Name: "emails", Type: query.ListOf(query.StringParam)},
		{Name: "birth", Type: query.DateParam},
	}},
	{Name: "getByAddressIdGreaterThan", Params: []query.Param{
		{Name: "id", Type: query.IntegerParam},
	}},
	{Name: "getByAddress_IdGreaterThan", Params: []query.Param{
		{Name: "id", Type: query.IntegerParam},
	}},
	{Name: "findByAddress_CityOrderByLastNameAsc", Params: []query.Param{
		{Name: "city", Type: query.StringParam},
	}},
	{Name: "findFirstByOrderByBirthDesc"},
	{Name: "countByLastName", Params: []query.Param{
		{Name: "lastName", Type: query.StringParam},
	}},
	{Name: "existsByEmail", Params: []query.Param{
		{Name: "email", Type: query.StringParam},
	}},
	{Name: "deleteByLastName", Modifying: true, Params: []query.Param{
		{Name: "lastName", Type: query.StringParam},
	}},
	{
		Name:  "getMaxIdPerson",
		Query: "SELECT p FROM Person p WHERE p.id = (SELECT max(p2.id) FROM Person p2)",
	},
	{
		Name:  "testQueryAnnotationParams1",
		Query: "SELECT p FROM Person p WHERE p.lastName = ?1 AND p.email = ?2",
		Params: []query.Param{
			{Name: "lastName", Type: query.StringParam},
			{Name: "email", Type: query.StringParam},
		},
	},
	{
		Name:  "testQueryAnnotationParams2",
		Query: "SELECT p FROM Person p WHERE p.lastName = :lastName AND p.email = :email",
		Params: []query.Param{
			{Name: "email", Type: query.StringParam},
			{Name: "lastName", Type: query.StringParam},
		},
	},
	{
		Name:  "testQueryAnnotationLikeParam",
		Query: "SELECT p FROM Person p WHERE p.lastName LIKE %?1% OR p.email LIKE %?2%",
		Params: []query.Param{
			{Name: "lastName", Type: query.StringParam},
			{Name: "email", Type: query.StringParam},
		},
	},
	{
		Name:  "testQueryAnnotationLikeParam2",
		Query: "SELECT p FROM Person p WHERE p.lastName LIKE %:lastName% OR p.email LIKE %:email%",
		Params: []query.Param{
			{Name: "email", Type: query.StringParam},
			{Name: "lastName", Type: query.StringParam},
		},
	},
	{
		Name:   "getTotalCount",
		Query:  "SELECT count(id) FROM jpa_persons",
		Native: true,
	},
	{
		Name:      "updatePersonEmail",
		Query:     "UPDATE Person p SET p.email = :email WHERE id = :id",
		Modifying: true,
		Params: []query.Param{
			{Name: "id", Type: query.IntegerParam},
			{Name: "email", Type: query.StringParam},
		},
	},
}
