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
	"time"

	"github.com/tomoncle/derive/query"
	"github.com/tomoncle/derive/repository"
	"github.com/uptrace/bun"
)

// Repository is the Person repository: the generic CRUD and paging
// operations plus the declared query methods.
type Repository struct {
	repository.Repository[Person]
	derived *repository.DerivedRepository[Person]
}

// NewRepository registers Methods and any extra declarations on a derived
// repository for Person. It fails if any method does not derive.
func NewRepository(db *bun.DB, opts repository.Options, extra ...query.Method) (*Repository, error) {
	derived := repository.NewDerivedRepository[Person](db, opts)
	if err := derived.Register(append(append([]query.Method(nil), Methods...), extra...)...); err != nil {
		return nil, err
	}
	return &Repository{
		Repository: repository.NewRepository[Person](db),
		derived:    derived,
	}, nil
}

// Derived exposes the underlying derived repository for methods that have
// no typed wrapper, e.g. ones loaded from a declaration file.
func (r *Repository) Derived() *repository.DerivedRepository[Person] { return r.derived }

// WithTx returns a repository whose declared methods run on tx.
func (r *Repository) WithTx(tx *bun.Tx) *Repository {
	return &Repository{Repository: r.Repository, derived: r.derived.WithTx(tx)}
}

func (r *Repository) GetByLastName(ctx context.Context, lastName string) (*Person, error) {
	return r.derived.One(ctx, "getByLastName", lastName)
}

// GetByLastNameStartingWithAndIdLessThan matches last_name LIKE 'prefix%' AND id < id.
func (r *Repository) GetByLastNameStartingWithAndIdLessThan(ctx context.Context, lastName string, id int64) ([]*Person, error) {
	return r.derived.Many(ctx, "getByLastNameStartingWithAndIdLessThan", lastName, id)
}

func (r *Repository) GetByLastNameEndingWithAndIdLessThan(ctx context.Context, lastName string, id int64) ([]*Person, error) {
	return r.derived.Many(ctx, "getByLastNameEndingWithAndIdLessThan", lastName, id)
}

func (r *Repository) GetByEmailInOrBirthLessThan(ctx context.Context, emails []string, birth time.Time) ([]*Person, error) {
	return r.derived.Many(ctx, "getByEmailInOrBirthLessThan", emails, birth)
}

// GetByAddressIdGreaterThan compares the person's own address_id column.
func (r *Repository) GetByAddressIdGreaterThan(ctx context.Context, id int64) ([]*Person, error) {
	return r.derived.Many(ctx, "getByAddressIdGreaterThan", id)
}

// GetByAddressCascadeIdGreaterThan joins the address and compares its id.
func (r *Repository) GetByAddressCascadeIdGreaterThan(ctx context.Context, id int64) ([]*Person, error) {
	return r.derived.Many(ctx, "getByAddress_IdGreaterThan", id)
}

func (r *Repository) FindByAddressCity(ctx context.Context, city string) ([]*Person, error) {
	return r.derived.Many(ctx, "findByAddress_CityOrderByLastNameAsc", city)
}

func (r *Repository) FindYoungest(ctx context.Context) (*Person, error) {
	return r.derived.One(ctx, "findFirstByOrderByBirthDesc")
}

func (r *Repository) CountByLastName(ctx context.Context, lastName string) (int64, error) {
	return r.derived.Count(ctx, "countByLastName", lastName)
}

func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.derived.Exists(ctx, "existsByEmail", email)
}

func (r *Repository) DeleteByLastName(ctx context.Context, tx *bun.Tx, lastName string) (int64, error) {
	return r.derived.Modify(ctx, tx, "deleteByLastName", lastName)
}

func (r *Repository) GetMaxIdPerson(ctx context.Context) (*Person, error) {
	return r.derived.One(ctx, "getMaxIdPerson")
}

func (r *Repository) TestQueryAnnotationParams1(ctx context.Context, lastName, email string) ([]*Person, error) {
	return r.derived.Many(ctx, "testQueryAnnotationParams1", lastName, email)
}

func (r *Repository) TestQueryAnnotationParams2(ctx context.Context, email, lastName string) ([]*Person, error) {
	return r.derived.Many(ctx, "testQueryAnnotationParams2", email, lastName)
}

func (r *Repository) TestQueryAnnotationLikeParam(ctx context.Context, lastName, email string) ([]*Person, error) {
	return r.derived.Many(ctx, "testQueryAnnotationLikeParam", lastName, email)
}

func (r *Repository) TestQueryAnnotationLikeParam2(ctx context.Context, email, lastName string) ([]*Person, error) {
	return r.derived.Many(ctx, "testQueryAnnotationLikeParam2", email, lastName)
}

func (r *Repository) GetTotalCount(ctx context.Context) (int64, error) {
	return r.derived.Count(ctx, "getTotalCount")
}

// UpdatePersonEmail must run inside a transaction; see repository.RunInTx.
func (r *Repository) UpdatePersonEmail(ctx context.Context, tx *bun.Tx, id int64, email string) (int64, error) {
	return r.derived.Modify(ctx, tx, "updatePersonEmail", id, email)
}
