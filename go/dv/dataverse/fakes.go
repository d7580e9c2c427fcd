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

package dataverse

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dvsql/dvsql/go/sqltypes"
)

// FakePool is a scripted ConnectionPool for tests. Each Get returns a
// FakeConnection serving the scripted pages in order.
type FakePool struct {
	mu sync.Mutex
	// Pages maps a substring of the fetchxml request to the pages served
	// for it. An empty key matches everything.
	Pages map[string][]*FetchPage
	// Err, when set, fails every ExecuteFetch.
	Err error
	// Parallelism is what RecommendedParallelism reports; zero means 4.
	Parallelism int

	// Requests records every fetchxml document executed, in order.
	Requests []string
	// Acquired counts Get calls; Released counts Release calls.
	Acquired int32
	Released int32
	// MaxInFlight tracks the high-water mark of concurrently held
	// connections.
	inFlight    int32
	MaxInFlight int32
}

var _ ConnectionPool = (*FakePool)(nil)

func (p *FakePool) Get(ctx context.Context) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Acquired++
	p.inFlight++
	if p.inFlight > p.MaxInFlight {
		p.MaxInFlight = p.inFlight
	}
	return &fakeConnection{pool: p}, nil
}

func (p *FakePool) RecommendedParallelism() int {
	if p.Parallelism == 0 {
		return 4
	}
	return p.Parallelism
}

type fakeConnection struct {
	pool     *FakePool
	released bool
	served   map[string]int
}

func (c *fakeConnection) ExecuteFetch(ctx context.Context, fetchXML string, paging PagingState) (*FetchPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := c.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, fetchXML)
	if p.Err != nil {
		return nil, p.Err
	}
	if c.served == nil {
		c.served = map[string]int{}
	}
	for key, pages := range p.Pages {
		if key != "" && !strings.Contains(fetchXML, key) {
			continue
		}
		idx := c.served[key]
		if idx >= len(pages) {
			idx = len(pages) - 1
		}
		c.served[key]++
		return pages[idx], nil
	}
	return &FetchPage{Result: &sqltypes.Result{}}, nil
}

func (c *fakeConnection) Release() {
	if c.released {
		return
	}
	c.released = true
	p := c.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Released++
	p.inFlight--
}

// FakeTDS is a scripted TDSTransport.
type FakeTDS struct {
	Result *sqltypes.Result
	Err    error
	// Queries records every SQL text received.
	Queries []string
}

var _ TDSTransport = (*FakeTDS)(nil)

func (t *FakeTDS) Query(ctx context.Context, sql string) (*sqltypes.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.Queries = append(t.Queries, sql)
	if t.Err != nil {
		return nil, t.Err
	}
	return t.Result, nil
}

// FakeBulkWriter records writes.
type FakeBulkWriter struct {
	mu     sync.Mutex
	Err    error
	Writes []RecordedWrite
}

// RecordedWrite is one bulk write call.
type RecordedWrite struct {
	Op       WriteOp
	Entities []Entity
	Opts     BatchOptions
}

var _ BulkWriter = (*FakeBulkWriter)(nil)

func (w *FakeBulkWriter) Write(ctx context.Context, op WriteOp, entities []Entity, opts BatchOptions) (Progress, error) {
	if err := ctx.Err(); err != nil {
		return Progress{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return Progress{}, w.Err
	}
	w.Writes = append(w.Writes, RecordedWrite{Op: op, Entities: entities, Opts: opts})
	return Progress{Succeeded: int64(len(entities))}, nil
}

// FakeMetadata is a scripted MetadataStore.
type FakeMetadata struct {
	EntityList []EntityMeta
	AttrsByEnt map[string][]AttributeMeta
	Options    []OptionMeta
	RowCounts  map[string]int64
	// CountErr fails RowCount, exercising the fast-count fallback.
	CountErr error
	Ranges   map[string][2]time.Time
	RangeErr error
}

var _ MetadataStore = (*FakeMetadata)(nil)

func (m *FakeMetadata) Entities(ctx context.Context) ([]EntityMeta, error) {
	return m.EntityList, nil
}

func (m *FakeMetadata) Entity(ctx context.Context, logicalName string) (*EntityMeta, error) {
	for i := range m.EntityList {
		if m.EntityList[i].LogicalName == logicalName {
			return &m.EntityList[i], nil
		}
	}
	return nil, fmt.Errorf("unknown entity %q", logicalName)
}

func (m *FakeMetadata) Attributes(ctx context.Context, entity string) ([]AttributeMeta, error) {
	return m.AttrsByEnt[entity], nil
}

func (m *FakeMetadata) OptionSets(ctx context.Context, entity string) ([]OptionMeta, error) {
	var out []OptionMeta
	for _, o := range m.Options {
		if o.Entity == entity {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *FakeMetadata) RowCount(ctx context.Context, entity string) (int64, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	count, ok := m.RowCounts[entity]
	if !ok {
		return 0, fmt.Errorf("no row count for entity %q", entity)
	}
	return count, nil
}

func (m *FakeMetadata) TimeRange(ctx context.Context, entity, attribute string) (time.Time, time.Time, error) {
	if m.RangeErr != nil {
		return time.Time{}, time.Time{}, m.RangeErr
	}
	r, ok := m.Ranges[entity]
	if !ok {
		return time.Time{}, time.Time{}, nil
	}
	return r[0], r[1], nil
}
