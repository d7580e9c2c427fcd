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

package sqltypes

// Field describes one output column.
type Field struct {
	Name string
	Type Type
}

// Row is one ordered row of values. Rows are never mutated in place; an
// operator that changes a row builds a new one.
type Row []Value

// Result is a fully materialized row set: what a transport returns per page
// and what Drain produces from a stream.
type Result struct {
	// Entity is the logical name of the entity the rows came from, when the
	// source is a single-entity scan. Empty for computed results.
	Entity string
	Fields []Field
	Rows   []Row

	// RowsAffected is set by DML execution instead of Rows.
	RowsAffected int64
}

// AppendRow adds a row. The row must match len(Fields); scans enforce that at
// the transport boundary, not here.
func (r *Result) AppendRow(row Row) {
	r.Rows = append(r.Rows, row)
}

// Copy returns a shallow copy sharing rows. Rows are immutable, so sharing is
// safe.
func (r *Result) Copy() *Result {
	out := &Result{
		Entity:       r.Entity,
		RowsAffected: r.RowsAffected,
		Fields:       make([]Field, len(r.Fields)),
		Rows:         make([]Row, len(r.Rows)),
	}
	copy(out.Fields, r.Fields)
	copy(out.Rows, r.Rows)
	return out
}
