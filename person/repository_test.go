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
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/derive/database"
	"github.com/tomoncle/derive/query"
	"github.com/tomoncle/derive/repository"
	"github.com/tomoncle/derive/types"
	"github.com/uptrace/bun"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// openTestDB opens a private in-memory SQLite database and creates the
// Person schema through the migration manager.
func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.Type = "sqlite"
	cfg.ConnectionConfig.DBName = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	cfg.ConnectionConfig.MaxOpenConns = 1
	cfg.DataMigrateConfig.EnableForeignKey = true
	cfg.DataInitConfig.AutoInitOnMigration = false

	db, err := database.Open(&cfg.ConnectionConfig, database.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrationManager(db, cfg, nil).RunMigrations(context.Background()))
	return db
}

// seed inserts three addresses and seven people:
//
//	1 AA       aa@x.com     1990 Beijing
//	2 AB       ab@x.com     1995 Shanghai
//	3 BB       bb@x.com     2000 Hangzhou
//	4 50%_off  promo@x.com  1985 -
//	5 XAA      xaa@x.com    1992 Shanghai
//	6 BB       bb2@x.com    2001 -
//	7 50Xoff   x50@x.com    1988 -
func seed(t *testing.T, db *bun.DB) {
	t.Helper()
	ctx := context.Background()
	addresses := []*Address{
		{City: "Beijing", Province: "BJ"},
		{City: "Shanghai", Province: "SH"},
		{City: "Hangzhou", Province: "ZJ"},
	}
	require.NoError(t, repository.NewRepository[Address](db).Create(ctx, addresses...))

	people := []*Person{
		{LastName: "AA", Email: "aa@x.com", Birth: date(1990, 1, 1), AddressID: 1},
		{LastName: "AB", Email: "ab@x.com", Birth: date(1995, 6, 1), AddressID: 2},
		{LastName: "BB", Email: "bb@x.com", Birth: date(2000, 1, 1), AddressID: 3},
		{LastName: "50%_off", Email: "promo@x.com", Birth: date(1985, 3, 1)},
		{LastName: "XAA", Email: "xaa@x.com", Birth: date(1992, 7, 1), AddressID: 2},
		{LastName: "BB", Email: "bb2@x.com", Birth: date(2001, 2, 1)},
		{LastName: "50Xoff", Email: "x50@x.com", Birth: date(1988, 9, 1)},
	}
	require.NoError(t, repository.NewRepository[Person](db).Create(ctx, people...))
}

func newTestRepository(t *testing.T) (*Repository, *bun.DB) {
	t.Helper()
	db := openTestDB(t)
	seed(t, db)
	repo, err := NewRepository(db, repository.Options{})
	require.NoError(t, err)
	return repo, db
}

func ids(people []*Person) []int64 {
	out := make([]int64, len(people))
	for i, p := range people {
		out[i] = p.ID
	}
	return out
}

func TestDerivedSingleResult(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	p, err := repo.GetByLastName(ctx, "AA")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "aa@x.com", p.Email)

	_, err = repo.GetByLastName(ctx, "nobody")
	assert.ErrorIs(t, err, query.ErrNotFound)

	_, err = repo.GetByLastName(ctx, "BB")
	assert.ErrorIs(t, err, query.ErrNonUniqueResult)

	youngest, err := repo.FindYoungest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), youngest.ID)
}

func TestDerivedEmptySingleResultPolicy(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	repo, err := NewRepository(db, repository.Options{SingleResultPolicy: database.SingleResultEmpty})
	require.NoError(t, err)

	p, err := repo.GetByLastName(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestDerivedLikeQueries(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	people, err := repo.GetByLastNameStartingWithAndIdLessThan(ctx, "A", 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(people))

	people, err = repo.GetByLastNameStartingWithAndIdLessThan(ctx, "A", 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(people))

	people, err = repo.GetByLastNameEndingWithAndIdLessThan(ctx, "A", 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5}, ids(people))

	// wildcards in the value match literally
	people, err = repo.GetByLastNameStartingWithAndIdLessThan(ctx, "50%_", 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(people))
}

func TestDerivedCollectionAndDate(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	people, err := repo.GetByEmailInOrBirthLessThan(ctx, []string{"aa@x.com", "bb@x.com"}, date(1986, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, ids(people))

	people, err = repo.GetByEmailInOrBirthLessThan(ctx, []string{}, date(1986, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(people))
}

func TestDerivedDirectAndCascadedProperty(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	people, err := repo.GetByAddressIdGreaterThan(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 5}, ids(people))

	people, err = repo.GetByAddressCascadeIdGreaterThan(ctx, 2)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, int64(3), people[0].ID)
	require.NotNil(t, people[0].Address)
	assert.Equal(t, "Hangzhou", people[0].Address.City)

	people, err = repo.FindByAddressCity(ctx, "Shanghai")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, ids(people))
	for _, p := range people {
		require.NotNil(t, p.Address)
		assert.Equal(t, "SH", p.Address.Province)
	}
}

func TestDerivedCountAndExists(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	n, err := repo.CountByLastName(ctx, "BB")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := repo.ExistsByEmail(ctx, "xaa@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExistsByEmail(ctx, "none@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnnotatedQueries(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	p, err := repo.GetMaxIdPerson(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "50Xoff", p.LastName)

	people, err := repo.TestQueryAnnotationParams1(ctx, "AA", "aa@x.com")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(people))

	people, err = repo.TestQueryAnnotationParams2(ctx, "aa@x.com", "AA")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(people))

	people, err = repo.TestQueryAnnotationLikeParam(ctx, "A", "zzz")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 5}, ids(people))

	people, err = repo.TestQueryAnnotationLikeParam2(ctx, "promo", "zzz")
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(people))

	people, err = repo.TestQueryAnnotationLikeParam(ctx, "%", "zzz")
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(people))

	total, err := repo.GetTotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
}

func TestModifyingQueries(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.UpdatePersonEmail(ctx, nil, 1, "new@x.com")
	assert.ErrorIs(t, err, query.ErrNoActiveTransaction)

	err = repository.RunInTx(ctx, db, func(ctx context.Context, tx *bun.Tx) error {
		n, err := repo.UpdatePersonEmail(ctx, tx, 1, "new@x.com")
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), n)

		p, err := repo.WithTx(tx).GetByLastName(ctx, "AA")
		if err != nil {
			return err
		}
		assert.Equal(t, "new@x.com", p.Email)
		return nil
	})
	require.NoError(t, err)

	p, err := repo.GetByLastName(ctx, "AA")
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", p.Email)

	errRollback := errors.New("rollback")
	err = repository.RunInTx(ctx, db, func(ctx context.Context, tx *bun.Tx) error {
		if _, err := repo.UpdatePersonEmail(ctx, tx, 1, "lost@x.com"); err != nil {
			return err
		}
		return errRollback
	})
	assert.ErrorIs(t, err, errRollback)

	p, err = repo.GetByLastName(ctx, "AA")
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", p.Email)

	err = repository.RunInTx(ctx, db, func(ctx context.Context, tx *bun.Tx) error {
		n, err := repo.DeleteByLastName(ctx, tx, "BB")
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)

	total, err := repo.GetTotalCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestDispatcherErrors(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	derived := repo.Derived()

	_, err := derived.Many(ctx, "updatePersonEmail", int64(1), "x@x.com")
	assert.ErrorIs(t, err, query.ErrReadOnlyViolation)

	_, err = derived.Many(ctx, "countByLastName", "AA")
	assert.ErrorIs(t, err, query.ErrResultKind)

	_, err = derived.Count(ctx, "getByLastName", "AA")
	assert.ErrorIs(t, err, query.ErrResultKind)

	_, err = derived.Many(ctx, "findByNickname", "AA")
	assert.ErrorIs(t, err, query.ErrUnknownMethod)

	_, err = derived.Many(ctx, "getByLastName")
	assert.ErrorIs(t, err, query.ErrArityMismatch)

	_, err = derived.Many(ctx, "getByLastName", 5)
	assert.ErrorIs(t, err, query.ErrTypeMismatch)

	_, err = derived.Many(ctx, "getByEmailInOrBirthLessThan", "aa@x.com", date(1990, 1, 1))
	assert.ErrorIs(t, err, query.ErrTypeMismatch)
}

func TestCommonTableExpressionDeleteIsRejected(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	err := repo.Derived().Register(query.Method{
		Name:   "purge",
		Query:  "WITH x AS (SELECT 1) DELETE FROM jpa_persons RETURNING *",
		Native: true,
	})
	assert.ErrorIs(t, err, query.ErrReadOnlyViolation)

	_, err = repo.Derived().Many(ctx, "purge")
	assert.ErrorIs(t, err, query.ErrUnknownMethod)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
}

func TestIgnoreCaseCollectionMatch(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	derived := repo.Derived()
	require.NoError(t, derived.Register(query.Method{
		Name:   "findByEmailInIgnoreCase",
		Params: []query.Param{{Name: "emails", Type: query.ListOf(query.StringParam)}},
	}))

	people, err := derived.Many(ctx, "findByEmailInIgnoreCase", []string{"AA@X.COM", "Bb@x.com"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids(people))
}

func TestRegistrationFailsFast(t *testing.T) {
	db := openTestDB(t)

	_, err := NewRepository(db, repository.Options{}, query.Method{Name: "findByNickname", Params: []query.Param{
		{Name: "nickname", Type: query.StringParam},
	}})
	assert.ErrorIs(t, err, query.ErrUnparseableMethodName)

	_, err = NewRepository(db, repository.Options{}, query.Method{Name: "getByLastName", Params: []query.Param{
		{Name: "lastName", Type: query.StringParam},
	}})
	assert.ErrorIs(t, err, query.ErrInvalidQuery)

	_, err = NewRepository(db, repository.Options{}, query.Method{
		Name:  "dropEmails",
		Query: "UPDATE Person p SET p.email = NULL",
	})
	assert.ErrorIs(t, err, query.ErrReadOnlyViolation)

	repo, err := NewRepository(db, repository.Options{})
	require.NoError(t, err)
	assert.Len(t, repo.Derived().Methods(), len(Methods))
}

func TestCrudOperations(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	p, err := repo.GetOne(ctx, int64(3))
	require.NoError(t, err)
	assert.Equal(t, "BB", p.LastName)

	_, err = repo.GetOne(ctx, int64(99))
	assert.ErrorIs(t, err, query.ErrNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	ok, err := repo.ExistsByID(ctx, int64(7))
	require.NoError(t, err)
	assert.True(t, ok)

	people, err := repo.GetAllByID(ctx, int64(5), int64(2))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, ids(people))

	page, err := repo.Page(ctx, types.NewPageRequestWithFilter(2, 3, types.NewQueryFilter("p.id > ?", 0)))
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 3, page.TotalPages())
	assert.Equal(t, []int64{4, 5, 6}, ids(page.Items))

	p.Email = "bb-updated@x.com"
	require.NoError(t, repo.Update(ctx, p))
	require.NoError(t, repo.Delete(ctx, int64(7)))

	ok, err = repo.ExistsByID(ctx, int64(7))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeclarationFile(t *testing.T) {
	decls, err := repository.LoadDeclarations("../configs/person_methods.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Person", decls.Entity)

	db := openTestDB(t)
	seed(t, db)
	repo, err := NewRepository(db, repository.Options{}, decls.Methods...)
	require.NoError(t, err)
	ctx := context.Background()
	derived := repo.Derived()

	people, err := derived.Many(ctx, "findPeopleInCity", "Shanghai")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, ids(people))

	n, err := derived.Count(ctx, "countByAddress_Province", "SH")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	people, err = derived.Many(ctx, "findByLastNameNotInAndEmailIsNotNull", []string{"AA", "BB"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 5, 7}, ids(people))

	people, err = derived.Many(ctx, "findByBirthBetweenOrderByBirthAsc", date(1988, 1, 1), date(1993, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 1, 5}, ids(people))
}
