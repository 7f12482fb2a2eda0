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
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing a date argument.
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// ParseValue converts the textual form of an argument into a value of the
// parameter's type. Collections are comma separated; "null" yields nil
// for scalar parameters.
func ParseValue(p ParamType, s string) (any, error) {
	if p.Collection {
		typ, ok := scalarTypes[p.Type]
		if !ok {
			return nil, fmt.Errorf("cannot parse %s values", p)
		}
		s = strings.TrimSpace(s)
		parts := strings.Split(s, ",")
		if s == "" {
			parts = nil
		}
		out := reflect.MakeSlice(reflect.SliceOf(typ), 0, len(parts))
		for _, part := range parts {
			v, err := parseScalar(p.Type, strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, reflect.ValueOf(v))
		}
		return out.Interface(), nil
	}
	if s == "null" {
		return nil, nil
	}
	return parseScalar(p.Type, s)
}

var scalarTypes = map[SemanticType]reflect.Type{
	TypeString:  reflect.TypeOf(""),
	TypeInteger: reflect.TypeOf(int64(0)),
	TypeFloat:   reflect.TypeOf(float64(0)),
	TypeBool:    reflect.TypeOf(false),
	TypeDate:    reflect.TypeOf(time.Time{}),
}

func parseScalar(t SemanticType, s string) (any, error) {
	switch t {
	case TypeString:
		return s, nil
	case TypeInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a float", s)
		}
		return f, nil
	case TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a bool", s)
		}
		return b, nil
	case TypeDate:
		for _, layout := range dateLayouts {
			if tm, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return tm, nil
			}
		}
		return nil, fmt.Errorf("%q is not a date", s)
	default:
		return nil, fmt.Errorf("cannot parse %s values", t)
	}
}
