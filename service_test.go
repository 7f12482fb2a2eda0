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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/derive/database"
	"github.com/tomoncle/derive/person"
	"github.com/tomoncle/derive/query"
	"github.com/tomoncle/derive/repository"
	"github.com/uptrace/bun"
)

func newPersonService(t *testing.T) Service[person.Person] {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.Type = "sqlite"
	cfg.ConnectionConfig.DBName = "file:" + t.Name() + "?mode=memory&cache=shared"
	cfg.ConnectionConfig.MaxOpenConns = 1

	db, err := database.Open(&cfg.ConnectionConfig, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrationManager(db, cfg, nil).RunMigrations(context.Background()))

	svc := NewServiceWithDB[person.Person](db, repository.OptionsFromConfig(cfg.QueryConfig))
	require.NoError(t, svc.Register(person.Methods...))
	return svc
}

func TestServiceCrudAndDerived(t *testing.T) {
	svc := newPersonService(t)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx,
		&person.Person{LastName: "AA", Email: "aa@x.com", Birth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)},
		&person.Person{LastName: "BB", Email: "bb@x.com", Birth: time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC)},
	))

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	p, err := svc.FindOne(ctx, "getByLastName", "BB")
	require.NoError(t, err)
	assert.Equal(t, "bb@x.com", p.Email)

	n, err := svc.Count(ctx, "getTotalCount")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = svc.Modify(ctx, "updatePersonEmail", p.ID, "bb-new@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "bb-new@x.com", got.Email)

	ok, err := svc.Exists(ctx, "existsByEmail", "bb-new@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServiceTransactional(t *testing.T) {
	svc := newPersonService(t)
	ctx := context.Background()
	require.NoError(t, svc.Save(ctx, &person.Person{LastName: "AA", Email: "aa@x.com"}))

	err := svc.Transactional(ctx, func(ctx context.Context, tx *bun.Tx, repo *repository.DerivedRepository[person.Person]) error {
		if _, err := repo.Modify(ctx, nil, "updatePersonEmail", int64(1), "tx@x.com"); err != nil {
			return err
		}
		p, err := repo.One(ctx, "getByLastName", "AA")
		if err != nil {
			return err
		}
		assert.Equal(t, "tx@x.com", p.Email)
		return nil
	})
	require.NoError(t, err)

	_, err = svc.Find(ctx, "updatePersonEmail", int64(1), "x@x.com")
	assert.ErrorIs(t, err, query.ErrReadOnlyViolation)
}

func TestServiceExplain(t *testing.T) {
	svc := newPersonService(t)

	plans, err := svc.Explain()
	require.NoError(t, err)
	require.Contains(t, plans, "getByLastNameStartingWithAndIdLessThan")
	assert.Equal(t, "lastName LIKE ?1% AND id < ?2", plans["getByLastNameStartingWithAndIdLessThan"]["predicate"])
	assert.Equal(t, true, plans["updatePersonEmail"]["modifying"])
	assert.Equal(t, "UPDATE jpa_persons SET email = ? WHERE id = ?", plans["updatePersonEmail"]["sql"])
}
