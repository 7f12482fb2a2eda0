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
	"reflect"
	"strings"

	"github.com/tomoncle/derive/query"
	"github.com/tomoncle/derive/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db *bun.DB
}

// NewRepository returns a generic repository backed by the provided Bun DB.
func NewRepository[T any](db *bun.DB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db}
}

func (r *baseRepositoryImpl[T]) DB() *bun.DB { return r.db }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

// pk is the qualified primary-key column of T, e.g. "p.id".
func (r *baseRepositoryImpl[T]) pk() bun.Ident {
	table := r.db.Table(reflect.TypeOf((*T)(nil)).Elem())
	if len(table.PKs) == 0 {
		return bun.Ident(string(table.Alias) + ".id")
	}
	return bun.Ident(string(table.Alias) + "." + table.PKs[0].Name)
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, id any) (*T, error) {
	var entity T
	err := r.db.NewSelect().Model(&entity).Where("? = ?", r.pk(), id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %T with id %v", query.ErrNotFound, entity, id)
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context) ([]*T, error) {
	var entities []*T
	err := r.db.NewSelect().Model(&entities).OrderExpr("? ASC", r.pk()).Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) GetAllByID(ctx context.Context, ids ...any) ([]*T, error) {
	var entities []*T
	if len(ids) == 0 {
		return entities, nil
	}
	err := r.db.NewSelect().Model(&entities).
		Where("? IN (?)", r.pk(), bun.In(ids)).
		OrderExpr("? ASC", r.pk()).
		Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	var entities []*T
	q := r.db.NewSelect().Model(&entities)
	if filter != nil {
		q = q.Where(filter.Schema, filter.Args...)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Query(ctx context.Context, where string, args ...interface{}) ([]*T, error) {
	var entities []*T
	err := r.db.NewSelect().Model(&entities).Where(where, args...).Scan(ctx)
	return entities, err
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context) (int64, error) {
	n, err := r.db.NewSelect().Model((*T)(nil)).Count(ctx)
	return int64(n), err
}

func (r *baseRepositoryImpl[T]) ExistsByID(ctx context.Context, id any) (bool, error) {
	return r.db.NewSelect().Model((*T)(nil)).Where("? = ?", r.pk(), id).Exists(ctx)
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	var entities []*T
	q := r.db.NewSelect().Model(&entities)
	if f := pageRequest.GetFilter(); f != nil {
		q = q.Where(f.Schema, f.Args...)
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := q.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}
	if orders := pageRequest.GetOrders(); len(orders) > 0 {
		q = q.Order(orders...)
	} else {
		q = q.OrderExpr("? ASC", r.pk())
	}
	err = q.Offset(pageRequest.GetOffset()).Limit(pageRequest.GetPageSize()).Scan(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	return r.CreateWithTx(ctx, nil, entity...)
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	return r.UpsertWithTx(ctx, nil, fields, duplicateKeys, entity...)
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	return r.UpdateWithTx(ctx, nil, entity)
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) error {
	return r.DeleteWithTx(ctx, nil, id)
}

// idb picks the transaction when one is given.
func (r *baseRepositoryImpl[T]) idb(tx *bun.Tx) bun.IDB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *baseRepositoryImpl[T]) CreateWithTx(ctx context.Context, tx *bun.Tx, entity ...*T) error {
	if len(entity) == 0 {
		return nil
	}
	entities := append([]*T(nil), entity...)
	_, err := r.idb(tx).NewInsert().Model(&entities).Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) UpsertWithTx(ctx context.Context, tx *bun.Tx, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	entities := append([]*T(nil), entity...)
	insert := r.idb(tx).NewInsert().Model(&entities)

	switch {
	case r.db.HasFeature(feature.InsertOnConflict):
		if len(duplicateKeys) == 0 {
			duplicateKeys = []string{"id"}
		}
		sets := make([]string, len(fields))
		for i, field := range fields {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", field, field)
		}
		_, err := insert.
			On("CONFLICT (" + strings.Join(duplicateKeys, ",") + ") DO UPDATE").
			Set(strings.Join(sets, ", ")).
			Exec(ctx)
		return err
	case r.db.HasFeature(feature.InsertOnDuplicateKey):
		sets := make([]string, len(fields))
		for i, field := range fields {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", field, field)
		}
		_, err := insert.On("DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")).Exec(ctx)
		return err
	default:
		for _, e := range entities {
			if _, err := r.idb(tx).NewInsert().Model(e).Exec(ctx); err != nil {
				if _, updateErr := r.idb(tx).NewUpdate().Model(e).WherePK().Exec(ctx); updateErr != nil {
					return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %v", err, updateErr)
				}
			}
		}
		return nil
	}
}

func (r *baseRepositoryImpl[T]) UpdateWithTx(ctx context.Context, tx *bun.Tx, entity *T) error {
	_, err := r.idb(tx).NewUpdate().Model(entity).WherePK().Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) DeleteWithTx(ctx context.Context, tx *bun.Tx, id any) error {
	_, err := r.idb(tx).NewDelete().Model((*T)(nil)).Where("? = ?", r.pk(), id).Exec(ctx)
	return err
}
