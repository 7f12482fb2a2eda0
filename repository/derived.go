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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomoncle/derive/database"
	"github.com/tomoncle/derive/query"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Options tunes how a DerivedRepository executes its plans.
type Options struct {
	// SingleResultPolicy is database.SingleResultError (the default) or
	// database.SingleResultEmpty.
	SingleResultPolicy string
	// WritableReads runs reads issued outside a caller transaction directly
	// on the DB. By default they run in a read-only transaction.
	WritableReads bool
	// Cache shares plans between repositories. A private cache is used
	// when nil.
	Cache *query.Cache
	// Logger defaults to database.GetLogger().
	Logger database.Logger
}

// OptionsFromConfig maps the query section of the database config.
func OptionsFromConfig(cfg database.QueryConfig) Options {
	return Options{
		SingleResultPolicy: cfg.SingleResultPolicy,
		WritableReads:      !cfg.ReadOnlyTransactions,
	}
}

type methodRegistry struct {
	mu    sync.RWMutex
	plans map[string]*query.Plan
}

// DerivedRepository executes repository methods declared by name, with
// optional annotated queries, against the Bun model T.
type DerivedRepository[T any] struct {
	db       *bun.DB
	tx       *bun.Tx
	entity   *query.Entity
	cache    *query.Cache
	opts     Options
	logger   database.Logger
	registry *methodRegistry
}

// NewDerivedRepository builds the entity metamodel of T from db's table
// registry. Methods must be registered before they can be called.
func NewDerivedRepository[T any](db *bun.DB, opts Options) *DerivedRepository[T] {
	if opts.Cache == nil {
		opts.Cache = query.NewCache()
	}
	if opts.Logger == nil {
		opts.Logger = database.GetLogger()
	}
	if opts.SingleResultPolicy == "" {
		opts.SingleResultPolicy = database.SingleResultError
	}
	return &DerivedRepository[T]{
		db:       db,
		entity:   query.EntityOf(db, (*T)(nil)),
		cache:    opts.Cache,
		opts:     opts,
		logger:   opts.Logger,
		registry: &methodRegistry{plans: make(map[string]*query.Plan)},
	}
}

// DB is the database the repository was built on.
func (r *DerivedRepository[T]) DB() *bun.DB { return r.db }

// Entity is the metamodel methods are derived against.
func (r *DerivedRepository[T]) Entity() *query.Entity { return r.entity }

// WithTx returns a view of the repository whose reads and mutations run
// on tx. Registered methods are shared with r.
func (r *DerivedRepository[T]) WithTx(tx *bun.Tx) *DerivedRepository[T] {
	c := *r
	c.tx = tx
	return &c
}

// Register derives every method and stores the plans. Either all methods
// are registered or none: the first derivation error is returned, as is a
// name that is already registered.
func (r *DerivedRepository[T]) Register(methods ...query.Method) error {
	plans := make(map[string]*query.Plan, len(methods))
	for _, m := range methods {
		if _, dup := plans[m.Name]; dup {
			return fmt.Errorf("%s: %w: declared twice", m.Name, query.ErrInvalidQuery)
		}
		plan, err := r.cache.Plan(r.entity, m)
		if err != nil {
			return err
		}
		plans[m.Name] = plan
	}

	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()
	for name := range plans {
		if _, ok := r.registry.plans[name]; ok {
			return fmt.Errorf("%s: %w: already registered", name, query.ErrInvalidQuery)
		}
	}
	for name, plan := range plans {
		r.registry.plans[name] = plan
		r.logger.Debug("Registered repository method", "entity", r.entity.Name, "method", name, "plan", plan.String())
	}
	return nil
}

// Plan returns the registered plan for name.
func (r *DerivedRepository[T]) Plan(name string) (*query.Plan, error) {
	r.registry.mu.RLock()
	plan, ok := r.registry.plans[name]
	r.registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", r.entity.Name, name, query.ErrUnknownMethod)
	}
	return plan, nil
}

// Methods lists the registered method names in sorted order.
func (r *DerivedRepository[T]) Methods() []string {
	r.registry.mu.RLock()
	defer r.registry.mu.RUnlock()
	names := make([]string, 0, len(r.registry.plans))
	for name := range r.registry.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bind resolves name, checks that its plan is one of kinds and binds args.
func (r *DerivedRepository[T]) bind(name string, args []any, kinds ...query.Kind) (*query.Bound, error) {
	plan, err := r.Plan(name)
	if err != nil {
		return nil, err
	}
	if plan.Kind.Mutating() {
		for _, k := range kinds {
			if k.Mutating() {
				return plan.Bind(args...)
			}
		}
		return nil, fmt.Errorf("%s: %w: %s method cannot run on the read path", name, query.ErrReadOnlyViolation, plan.Kind)
	}
	for _, k := range kinds {
		if plan.Kind == k {
			return plan.Bind(args...)
		}
	}
	return nil, fmt.Errorf("%s: %w: plan is %s", name, query.ErrResultKind, plan.Kind)
}

// One returns the single entity matched by name. No match yields
// query.ErrNotFound, or nil under the empty single-result policy; more
// than one yields query.ErrNonUniqueResult.
func (r *DerivedRepository[T]) One(ctx context.Context, name string, args ...any) (*T, error) {
	bound, err := r.bind(name, args, query.KindSelect)
	if err != nil {
		return nil, err
	}
	limit := 2
	if plan := bound.Plan; plan.Tree != nil && plan.Tree.Limit == 1 {
		limit = 1
	}
	rows, err := r.fetch(ctx, bound, limit)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		if r.opts.SingleResultPolicy == database.SingleResultEmpty {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", name, query.ErrNotFound)
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("%s: %w", name, query.ErrNonUniqueResult)
	}
}

// Many returns every entity matched by name in plan order.
func (r *DerivedRepository[T]) Many(ctx context.Context, name string, args ...any) ([]*T, error) {
	bound, err := r.bind(name, args, query.KindSelect)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, bound, 0)
}

// Count runs a derived count or an annotated scalar select.
func (r *DerivedRepository[T]) Count(ctx context.Context, name string, args ...any) (int64, error) {
	bound, err := r.bind(name, args, query.KindCount, query.KindSelect)
	if err != nil {
		return 0, err
	}
	plan := bound.Plan
	if plan.Kind == query.KindSelect && !plan.Annotated() {
		return 0, fmt.Errorf("%s: %w: derived select cannot be counted", name, query.ErrResultKind)
	}

	var n int64
	err = r.read(ctx, func(ctx context.Context, db bun.IDB) error {
		if plan.Annotated() {
			sqlText, sqlArgs, err := bound.SQL()
			if err != nil {
				return err
			}
			return db.NewRaw(sqlText, sqlArgs...).Scan(ctx, &n)
		}
		c, err := r.selectQuery(db, bound, (*T)(nil)).Count(ctx)
		n = int64(c)
		return err
	})
	return n, r.fail(name, err)
}

// Exists runs a derived exists method.
func (r *DerivedRepository[T]) Exists(ctx context.Context, name string, args ...any) (bool, error) {
	bound, err := r.bind(name, args, query.KindExists)
	if err != nil {
		return false, err
	}
	var ok bool
	err = r.read(ctx, func(ctx context.Context, db bun.IDB) error {
		ok, err = r.selectQuery(db, bound, (*T)(nil)).Exists(ctx)
		return err
	})
	return ok, r.fail(name, err)
}

// Modify runs a modifying method on tx and returns the rows affected. A
// nil tx falls back to the repository's own transaction, if any, and
// otherwise fails with query.ErrNoActiveTransaction.
func (r *DerivedRepository[T]) Modify(ctx context.Context, tx *bun.Tx, name string, args ...any) (int64, error) {
	bound, err := r.bind(name, args, query.KindDelete, query.KindModify)
	if err != nil {
		return 0, err
	}
	if tx == nil {
		tx = r.tx
	}
	if tx == nil {
		return 0, fmt.Errorf("%s: %w", name, query.ErrNoActiveTransaction)
	}

	var res sql.Result
	if bound.Plan.Annotated() {
		sqlText, sqlArgs, err := bound.SQL()
		if err != nil {
			return 0, err
		}
		res, err = tx.ExecContext(ctx, sqlText, sqlArgs...)
		if err != nil {
			return 0, r.fail(name, err)
		}
	} else {
		where, whereArgs := bound.Where()
		if where == "" {
			where = "1 = 1"
		}
		res, err = tx.NewDelete().Model((*T)(nil)).Where(where, whereArgs...).Exec(ctx)
		if err != nil {
			return 0, r.fail(name, err)
		}
	}
	n, err := res.RowsAffected()
	return n, r.fail(name, err)
}

// fetch loads the rows of a select plan; limit > 0 caps the row count on
// top of the plan's own limit.
func (r *DerivedRepository[T]) fetch(ctx context.Context, bound *query.Bound, limit int) ([]*T, error) {
	rows := make([]*T, 0)
	err := r.read(ctx, func(ctx context.Context, db bun.IDB) error {
		if bound.Plan.Annotated() {
			sqlText, sqlArgs, err := bound.SQL()
			if err != nil {
				return err
			}
			return db.NewRaw(sqlText, sqlArgs...).Scan(ctx, &rows)
		}
		q := r.selectQuery(db, bound, &rows)
		if limit > 0 && (bound.Plan.Tree.Limit == 0 || limit < bound.Plan.Tree.Limit) {
			q = q.Limit(limit)
		}
		return q.Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return rows, nil
	}
	if err != nil {
		return nil, r.fail(bound.Plan.Method.Name, err)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// selectQuery builds the Bun select for a derived plan: relation joins,
// the compiled predicate, distinct, ordering and limit.
func (r *DerivedRepository[T]) selectQuery(db bun.IDB, bound *query.Bound, model interface{}) *bun.SelectQuery {
	plan := bound.Plan
	q := db.NewSelect().Model(model)
	for _, rel := range plan.Relations() {
		q = q.Relation(rel)
	}
	if where, args := bound.Where(); where != "" {
		q = q.Where(where, args...)
	}
	if plan.Tree.Distinct {
		q = q.Distinct()
	}
	if plan.Kind == query.KindSelect {
		for _, o := range plan.OrderRefs() {
			if o.Desc {
				q = q.OrderExpr("? DESC", bun.Ident(o.Column))
			} else {
				q = q.OrderExpr("? ASC", bun.Ident(o.Column))
			}
		}
	}
	if plan.Tree.Limit > 0 {
		q = q.Limit(plan.Tree.Limit)
	}
	return q
}

// read runs fn on the caller transaction when the repository has one,
// otherwise in a read-only transaction unless WritableReads is set. A write
// rejected by the database surfaces as query.ErrReadOnlyViolation.
func (r *DerivedRepository[T]) read(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
	if r.tx != nil {
		return fn(ctx, r.tx)
	}
	if r.opts.WritableReads {
		return fn(ctx, r.db)
	}
	err := r.db.RunInTx(ctx, readTxOptions(r.db), func(ctx context.Context, tx bun.Tx) error {
		if r.db.Dialect().Name() != dialect.SQLite {
			return fn(ctx, tx)
		}
		return sqliteQueryOnly(ctx, tx, fn)
	})
	if _, kind := database.IsSqlError(err); kind == database.ReadOnlyErr {
		return fmt.Errorf("%w: %v", query.ErrReadOnlyViolation, err)
	}
	return err
}

// readTxOptions marks the transaction read-only except on SQLite, whose
// driver rejects the option.
func readTxOptions(db *bun.DB) *sql.TxOptions {
	if db.Dialect().Name() == dialect.SQLite {
		return &sql.TxOptions{}
	}
	return &sql.TxOptions{ReadOnly: true}
}

// sqliteQueryOnly runs fn with query_only set on the connection held by tx.
// The pragma is per connection, so it is cleared before the transaction
// ends and the connection returns to the pool.
func sqliteQueryOnly(ctx context.Context, tx bun.Tx, fn func(ctx context.Context, db bun.IDB) error) (err error) {
	if _, err := tx.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return err
	}
	defer func() {
		if _, resetErr := tx.ExecContext(ctx, "PRAGMA query_only = OFF"); resetErr != nil && err == nil {
			err = resetErr
		}
	}()
	return fn(ctx, tx)
}

func (r *DerivedRepository[T]) fail(name string, err error) error {
	if err == nil {
		return nil
	}
	_, kind := database.IsSqlError(err)
	r.logger.Error("Repository method failed", "entity", r.entity.Name, "method", name, "kind", kind.String(), "error", err)
	return err
}

// RunInTx runs fn inside a transaction on db. The transaction commits when
// fn returns nil and rolls back when it returns an error or panics.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context, tx *bun.Tx) error) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &tx)
	})
}
