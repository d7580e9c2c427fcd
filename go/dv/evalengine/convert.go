/*
Copyright 2025 The DVSQL Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package evalengine

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// Cast converts v to the target type with fixed truncation rules: decimals
// truncate toward zero when cast to integer, text parses strictly after
// trimming. An out-of-range numeric cast is an evaluation error, never a
// silent wrap.
func Cast(v sqltypes.Value, target sqltypes.Type) (sqltypes.Value, error) {
	if v.IsNull() {
		return sqltypes.NULL, nil
	}
	if v.Type() == target {
		return v, nil
	}
	switch target {
	case sqltypes.Text:
		return sqltypes.NewText(v.RawText()), nil
	case sqltypes.Int64:
		return castToInt64(v)
	case sqltypes.Decimal:
		return castToDecimal(v)
	case sqltypes.Boolean:
		return castToBool(v)
	case sqltypes.DateTime:
		return castToDateTime(v)
	case sqltypes.Guid:
		return castToGuid(v)
	}
	return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %v to %v", v.Type(), target)
}

func castToInt64(v sqltypes.Value) (sqltypes.Value, error) {
	switch v.Type() {
	case sqltypes.Boolean:
		b, _ := v.ToBool()
		if b {
			return sqltypes.NewInt64(1), nil
		}
		return sqltypes.NewInt64(0), nil
	case sqltypes.Decimal:
		d, _ := v.ToDecimal()
		truncated := d.Truncate(0)
		bi := truncated.BigInt()
		if !bi.IsInt64() {
			return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "value %s out of range for integer", d)
		}
		return sqltypes.NewInt64(bi.Int64()), nil
	case sqltypes.Text:
		s := strings.TrimSpace(v.RawText())
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// allow "12.0" style text through the decimal path
			d, derr := decimal.NewFromString(s)
			if derr != nil {
				return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %q to integer", s)
			}
			return castToInt64(sqltypes.NewDecimal(d))
		}
		return sqltypes.NewInt64(i), nil
	}
	return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %v to integer", v.Type())
}

func castToDecimal(v sqltypes.Value) (sqltypes.Value, error) {
	switch v.Type() {
	case sqltypes.Int64:
		i, _ := v.ToInt64()
		return sqltypes.NewDecimal(decimal.NewFromInt(i)), nil
	case sqltypes.Boolean:
		b, _ := v.ToBool()
		if b {
			return sqltypes.NewDecimal(decimal.NewFromInt(1)), nil
		}
		return sqltypes.NewDecimal(decimal.Zero), nil
	case sqltypes.Text:
		d, err := decimal.NewFromString(strings.TrimSpace(v.RawText()))
		if err != nil {
			return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %q to decimal", v.RawText())
		}
		return sqltypes.NewDecimal(d), nil
	}
	return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %v to decimal", v.Type())
}

func castToBool(v sqltypes.Value) (sqltypes.Value, error) {
	switch v.Type() {
	case sqltypes.Int64:
		i, _ := v.ToInt64()
		return sqltypes.NewBool(i != 0), nil
	case sqltypes.Text:
		switch strings.ToLower(strings.TrimSpace(v.RawText())) {
		case "true", "1":
			return sqltypes.NewBool(true), nil
		case "false", "0":
			return sqltypes.NewBool(false), nil
		}
		return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %q to boolean", v.RawText())
	}
	return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %v to boolean", v.Type())
}

func castToDateTime(v sqltypes.Value) (sqltypes.Value, error) {
	if v.Type() != sqltypes.Text {
		return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %v to datetime", v.Type())
	}
	out, err := sqltypes.NewValue(sqltypes.DateTime, strings.TrimSpace(v.RawText()))
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	return out, nil
}

func castToGuid(v sqltypes.Value) (sqltypes.Value, error) {
	if v.Type() != sqltypes.Text {
		return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %v to guid", v.Type())
	}
	g, err := uuid.Parse(strings.TrimSpace(v.RawText()))
	if err != nil {
		return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot cast %q to guid", v.RawText())
	}
	return sqltypes.NewGuid(g), nil
}
