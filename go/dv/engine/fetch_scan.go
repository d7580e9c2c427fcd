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

package engine

import (
	"context"
	"io"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/fetchxml"
	"github.com/dvsql/dvsql/go/dv/log"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// FetchScan executes a fetchxml document over the native transport, pulling
// pages lazily as the consumer drains the stream. It holds one pooled
// connection from open to close.
type FetchScan struct {
	Query    *fetchxml.Fetch
	Estimate int64
	Why      string
	// NodeName keys the statistics sink.
	NodeName string
}

var _ Primitive = (*FetchScan)(nil)

func (s *FetchScan) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	doc, err := s.Query.Marshal()
	if err != nil {
		return nil, dverrors.WithCode(dverrors.Internal, err)
	}
	conn, err := pctx.Pool.Get(ctx)
	if err != nil {
		return nil, dverrors.Wrap(dverrors.WithCode(dverrors.Transport, err), "acquiring connection")
	}
	stream := &fetchStream{
		ctx:    ctx,
		pctx:   pctx,
		scan:   s,
		conn:   conn,
		doc:    doc,
		more:   true,
		paging: dataverse.PagingState{Page: 1, Count: s.Query.Count},
	}
	return stream, nil
}

func (s *FetchScan) EstimatedRows() int64 {
	return s.Estimate
}

func (s *FetchScan) Inputs() []Primitive {
	return nil
}

func (s *FetchScan) Description() PrimitiveDescription {
	entity := ""
	if s.Query.Entity != nil {
		entity = s.Query.Entity.Name
	}
	variant := ""
	if s.Query.Aggregate {
		variant = "aggregate"
	}
	return PrimitiveDescription{
		OperatorType:  "FetchScan",
		Variant:       variant,
		Entity:        entity,
		EstimatedRows: s.Estimate,
		Why:           s.Why,
	}
}

type fetchStream struct {
	ctx    context.Context
	pctx   *PlanContext
	scan   *FetchScan
	conn   dataverse.Connection
	doc    string
	paging dataverse.PagingState

	fields []sqltypes.Field
	rows   []sqltypes.Row
	pos    int
	more   bool
	closed bool
}

var _ RowStream = (*fetchStream)(nil)

func (s *fetchStream) Fields() []sqltypes.Field {
	if s.fields == nil {
		// field metadata arrives with the first page
		if err := s.fetchPage(); err != nil && err != io.EOF {
			return nil
		}
	}
	return s.fields
}

func (s *fetchStream) Next() (sqltypes.Row, error) {
	for s.pos >= len(s.rows) {
		if err := s.fetchPage(); err != nil {
			return nil, err
		}
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// fetchPage requests the next page. Cancellation is observed here, between
// round trips, never mid-page.
func (s *fetchStream) fetchPage() error {
	if !s.more {
		return io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		return dverrors.WithCode(dverrors.Cancelled, err)
	}
	page, err := s.conn.ExecuteFetch(s.ctx, s.doc, s.paging)
	if err != nil {
		if s.ctx.Err() != nil {
			return dverrors.WithCode(dverrors.Cancelled, err)
		}
		return dverrors.Wrap(dverrors.WithCode(dverrors.Transport, err), "native scan")
	}
	if s.fields == nil {
		s.fields = page.Result.Fields
	}
	s.rows = page.Result.Rows
	s.pos = 0
	s.more = page.MoreRecords
	s.paging.Page++
	s.paging.Cookie = page.Cookie
	s.pctx.Stats.AddRows(s.scan.statsName(), int64(len(s.rows)))
	if len(s.rows) == 0 && !s.more {
		return io.EOF
	}
	if log.V(2) {
		log.Infof("fetch scan page %d: %d rows, more=%v", s.paging.Page-1, len(s.rows), s.more)
	}
	return nil
}

func (s *fetchStream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.conn.Release()
}

func (s *FetchScan) statsName() string {
	if s.NodeName != "" {
		return s.NodeName
	}
	return "FetchScan"
}
