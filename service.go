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

package derive

import (
	"context"
	"sync"

	"github.com/tomoncle/derive/database"
	"github.com/tomoncle/derive/query"
	"github.com/tomoncle/derive/repository"
	"github.com/tomoncle/derive/types"
	"github.com/uptrace/bun"
)

// Service is the service layer over an entity: CRUD and paging through
// the generic repository, declared query methods through the derived
// repository, and transaction scoping for modifying methods.
type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities ordered by primary key.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) error

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error

	// Update modifies an existing entity.
	Update(ctx context.Context, model *T) error

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) error

	// Register declares query methods; see repository.DerivedRepository.
	Register(methods ...query.Method) error

	// FindOne runs a declared method expected to match a single entity.
	FindOne(ctx context.Context, method string, args ...any) (*T, error)

	// Find runs a declared method returning a list of entities.
	Find(ctx context.Context, method string, args ...any) ([]*T, error)

	// Count runs a declared count or scalar method.
	Count(ctx context.Context, method string, args ...any) (int64, error)

	// Exists runs a declared exists method.
	Exists(ctx context.Context, method string, args ...any) (bool, error)

	// Modify runs a declared modifying method in its own transaction.
	Modify(ctx context.Context, method string, args ...any) (int64, error)

	// Transactional runs fn in a transaction with a derived repository
	// bound to it.
	Transactional(ctx context.Context, fn func(ctx context.Context, tx *bun.Tx, repo *repository.DerivedRepository[T]) error) error

	// Explain returns the plans of the registered methods keyed by name.
	Explain() (map[string]types.JsonObject, error)
}

type baseServiceImpl[T any] struct {
	db      *bun.DB
	opts    repository.Options
	repo    repository.Repository[T]
	derived *repository.DerivedRepository[T]
	once    sync.Once
}

// NewService returns a Service backed by the global database connection
// and the query section of its config.
func NewService[T any]() Service[T] {
	opts := repository.Options{}
	if cfg := database.GetConfig(); cfg != nil {
		opts = repository.OptionsFromConfig(cfg.QueryConfig)
	}
	return &baseServiceImpl[T]{opts: opts}
}

// NewServiceWithDB returns a Service bound to db.
func NewServiceWithDB[T any](db *bun.DB, opts repository.Options) Service[T] {
	return &baseServiceImpl[T]{db: db, opts: opts}
}

func (s *baseServiceImpl[T]) init() {
	s.once.Do(func() {
		if s.db == nil {
			s.db = database.GetDB()
		}
		s.repo = repository.NewRepository[T](s.db)
		s.derived = repository.NewDerivedRepository[T](s.db, s.opts)
	})
}

func (s *baseServiceImpl[T]) baseRepo() repository.Repository[T] {
	s.init()
	return s.repo
}

func (s *baseServiceImpl[T]) derivedRepo() *repository.DerivedRepository[T] {
	s.init()
	return s.derived
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	return s.baseRepo().GetOne(ctx, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	return s.baseRepo().GetAll(ctx)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	return s.baseRepo().List(ctx, filter)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	return s.baseRepo().Page(ctx, page)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	return s.baseRepo().Create(ctx, model...)
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	return s.baseRepo().Upsert(ctx, fields, duplicateKeys, model...)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) error {
	return s.baseRepo().Update(ctx, model)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	return s.baseRepo().Delete(ctx, id)
}

func (s *baseServiceImpl[T]) Register(methods ...query.Method) error {
	return s.derivedRepo().Register(methods...)
}

func (s *baseServiceImpl[T]) FindOne(ctx context.Context, method string, args ...any) (*T, error) {
	return s.derivedRepo().One(ctx, method, args...)
}

func (s *baseServiceImpl[T]) Find(ctx context.Context, method string, args ...any) ([]*T, error) {
	return s.derivedRepo().Many(ctx, method, args...)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, method string, args ...any) (int64, error) {
	return s.derivedRepo().Count(ctx, method, args...)
}

func (s *baseServiceImpl[T]) Exists(ctx context.Context, method string, args ...any) (bool, error) {
	return s.derivedRepo().Exists(ctx, method, args...)
}

func (s *baseServiceImpl[T]) Modify(ctx context.Context, method string, args ...any) (int64, error) {
	var n int64
	err := repository.RunInTx(ctx, s.derivedRepo().DB(), func(ctx context.Context, tx *bun.Tx) error {
		var err error
		n, err = s.derived.Modify(ctx, tx, method, args...)
		return err
	})
	return n, err
}

func (s *baseServiceImpl[T]) Transactional(ctx context.Context, fn func(ctx context.Context, tx *bun.Tx, repo *repository.DerivedRepository[T]) error) error {
	derived := s.derivedRepo()
	return repository.RunInTx(ctx, derived.DB(), func(ctx context.Context, tx *bun.Tx) error {
		return fn(ctx, tx, derived.WithTx(tx))
	})
}

func (s *baseServiceImpl[T]) Explain() (map[string]types.JsonObject, error) {
	derived := s.derivedRepo()
	out := make(map[string]types.JsonObject)
	for _, name := range derived.Methods() {
		plan, err := derived.Plan(name)
		if err != nil {
			return nil, err
		}
		out[name] = plan.Describe()
	}
	return out, nil
}
