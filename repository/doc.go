// Package repository provides the generic Bun repository (CRUD, paging,
// upsert, transactional variants) and DerivedRepository, which executes
// repository methods declared by name or by annotated query.
package repository
