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

package query

import (
	"errors"
	"fmt"
)

// Derivation-time errors. Registration surfaces these before the first
// call.
var (
	ErrUnparseableMethodName = errors.New("unparseable method name")
	ErrArityMismatch         = errors.New("parameter count mismatch")
	ErrTypeMismatch          = errors.New("parameter type mismatch")
	ErrUnboundNamedParameter = errors.New("unbound named parameter")
	ErrReadOnlyViolation     = errors.New("mutating statement on read-only path")
	ErrInvalidQuery          = errors.New("invalid query string")
)

// Execution-time errors.
var (
	ErrNoActiveTransaction = errors.New("no active transaction")
	ErrNotFound            = errors.New("entity not found")
	ErrNonUniqueResult     = errors.New("non-unique result")
	ErrResultKind          = errors.New("result kind mismatch")
	ErrUnknownMethod       = errors.New("unknown repository method")
)

func methodErr(sentinel error, method string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", sentinel, method, fmt.Sprintf(format, args...))
}
