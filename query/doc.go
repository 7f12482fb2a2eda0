// Package query derives executable query plans from repository method
// declarations: method names such as getByLastNameStartingWithAndIdLessThan
// are parsed into predicate trees over an entity metamodel, and annotated
// query strings are resolved into parameterized SQL.
package query
