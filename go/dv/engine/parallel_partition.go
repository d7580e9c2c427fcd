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
	"fmt"
	"io"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dvsql/dvsql/go/dv/log"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// ParallelPartition runs range-disjoint partition scans concurrently and
// interleaves their rows in arrival order. In-flight scans are bounded by
// MaxParallel, so at most that many pooled connections are held at once.
//
// Row order across partitions is not deterministic; the planner puts a
// MergeAggregate or MemorySort above when order or grouping matters.
type ParallelPartition struct {
	Partitions   []Primitive
	MaxParallel  int
	OutputFields []sqltypes.Field
	Why          string
}

var _ Primitive = (*ParallelPartition)(nil)

type rowOrErr struct {
	row sqltypes.Row
	err error
}

func (p *ParallelPartition) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	bound := p.MaxParallel
	if bound <= 0 || bound > len(p.Partitions) {
		bound = len(p.Partitions)
	}
	runCtx, cancel := context.WithCancel(ctx)
	ch := make(chan rowOrErr)
	sem := semaphore.NewWeighted(int64(bound))
	g, gctx := errgroup.WithContext(runCtx)

	for i, part := range p.Partitions {
		i, part := i, part
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			err := p.runPartition(gctx, pctx, part, ch)
			if err != nil && pctx.OnPartitionError == DegradePartial {
				pctx.Warn(fmt.Sprintf("partition %d failed, result is partial: %v", i, err))
				log.Warningf("dropping failed partition %d: %v", i, err)
				return nil
			}
			return err
		})
	}
	go func() {
		err := g.Wait()
		select {
		case ch <- rowOrErr{err: errOrEOF(err)}:
		case <-runCtx.Done():
		}
	}()

	return &parallelStream{fields: p.OutputFields, ch: ch, ctx: runCtx, cancel: cancel}, nil
}

// runPartition drains one partition scan into the shared channel.
func (p *ParallelPartition) runPartition(ctx context.Context, pctx *PlanContext, part Primitive, ch chan<- rowOrErr) error {
	stream, err := part.Exec(ctx, pctx)
	if err != nil {
		return err
	}
	defer stream.Close()
	for {
		row, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case ch <- rowOrErr{row: row}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func errOrEOF(err error) error {
	if err == nil {
		return io.EOF
	}
	return err
}

func (p *ParallelPartition) EstimatedRows() int64 {
	var total int64
	for _, part := range p.Partitions {
		est := part.EstimatedRows()
		if est == EstimateUnknown {
			return EstimateUnknown
		}
		total += est
	}
	return total
}

func (p *ParallelPartition) Inputs() []Primitive {
	return p.Partitions
}

func (p *ParallelPartition) Description() PrimitiveDescription {
	return PrimitiveDescription{
		OperatorType:  "ParallelPartition",
		EstimatedRows: p.EstimatedRows(),
		Why:           p.Why,
		Other: map[string]string{
			"Partitions":  strconv.Itoa(len(p.Partitions)),
			"MaxParallel": strconv.Itoa(p.MaxParallel),
		},
	}
}

type parallelStream struct {
	fields []sqltypes.Field
	ch     <-chan rowOrErr
	ctx    context.Context
	cancel context.CancelFunc
	done   bool
}

var _ RowStream = (*parallelStream)(nil)

func (s *parallelStream) Fields() []sqltypes.Field {
	return s.fields
}

func (s *parallelStream) Next() (sqltypes.Row, error) {
	if s.done {
		return nil, io.EOF
	}
	// the terminal send races with cancellation of the run context, so a
	// receive alone could block forever after the caller's context dies
	select {
	case re := <-s.ch:
		if re.err != nil {
			s.done = true
			s.cancel()
			return nil, re.err
		}
		return re.row, nil
	case <-s.ctx.Done():
		s.done = true
		s.cancel()
		return nil, s.ctx.Err()
	}
}

func (s *parallelStream) Close() {
	s.done = true
	s.cancel()
}
