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
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/sqltypes"
)

func TestParallelPartitionUnion(t *testing.T) {
	fields := sqltypes.MakeTestFields("name", "text")
	parts := []Primitive{
		&fakePrimitive{result: sqltypes.MakeTestResult(fields, "a", "b")},
		&fakePrimitive{result: sqltypes.MakeTestResult(fields, "c")},
		&fakePrimitive{result: sqltypes.MakeTestResult(fields)},
		&fakePrimitive{result: sqltypes.MakeTestResult(fields, "d", "e")},
	}

	result := runPrimitive(t, &ParallelPartition{
		Partitions:   parts,
		MaxParallel:  2,
		OutputFields: fields,
	}, newTestContext())

	// arrival order across partitions is not deterministic
	expected := sqltypes.MakeTestResult(fields, "a", "b", "c", "d", "e")
	assert.ElementsMatch(t, expected.Rows, result.Rows)
	for i, p := range parts {
		assert.Equal(t, 1, p.(*fakePrimitive).execCount, "partition %d", i)
	}
}

func TestParallelPartitionBoundsConnections(t *testing.T) {
	fields := sqltypes.MakeTestFields("name", "text")
	pool := &dataverse.FakePool{
		Pages: map[string][]*dataverse.FetchPage{
			"": {{Result: sqltypes.MakeTestResult(fields, "x")}},
		},
	}
	var parts []Primitive
	for i := 0; i < 4; i++ {
		scan := accountScan()
		scan.NodeName = fmt.Sprintf("FetchScan(partition %d)", i)
		parts = append(parts, scan)
	}
	pctx := &PlanContext{Pool: pool, Stats: NewStats()}

	result := runPrimitive(t, &ParallelPartition{
		Partitions:   parts,
		MaxParallel:  2,
		OutputFields: fields,
	}, pctx)

	assert.Len(t, result.Rows, 4)
	assert.Equal(t, int32(4), pool.Acquired)
	assert.Equal(t, int32(4), pool.Released)
	// the semaphore keeps at most MaxParallel scans holding a connection
	assert.LessOrEqual(t, pool.MaxInFlight, int32(2))
}

func TestParallelPartitionFailPlan(t *testing.T) {
	fields := sqltypes.MakeTestFields("name", "text")
	parts := []Primitive{
		&fakePrimitive{result: sqltypes.MakeTestResult(fields, "a")},
		&fakePrimitive{execErr: errors.New("partition exploded")},
	}

	p := &ParallelPartition{Partitions: parts, MaxParallel: 2, OutputFields: fields}
	stream, err := p.Exec(context.Background(), newTestContext())
	require.NoError(t, err)
	defer stream.Close()

	_, err = Drain(stream)
	require.Error(t, err)
	assert.ErrorContains(t, err, "partition exploded")
}

// blockingPrimitive parks in Exec until its context dies, signalling entry
// and exit so tests can synchronize without sleeps.
type blockingPrimitive struct {
	started chan struct{}
	exited  chan struct{}
}

func newBlockingPrimitive() *blockingPrimitive {
	return &blockingPrimitive{started: make(chan struct{}, 1), exited: make(chan struct{}, 1)}
}

func (b *blockingPrimitive) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	b.started <- struct{}{}
	<-ctx.Done()
	b.exited <- struct{}{}
	return nil, ctx.Err()
}

func (b *blockingPrimitive) EstimatedRows() int64 { return EstimateUnknown }
func (b *blockingPrimitive) Inputs() []Primitive  { return nil }
func (b *blockingPrimitive) Description() PrimitiveDescription {
	return PrimitiveDescription{OperatorType: "Blocking"}
}

func TestParallelPartitionCancellation(t *testing.T) {
	fields := sqltypes.MakeTestFields("name", "text")
	first, second := newBlockingPrimitive(), newBlockingPrimitive()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &ParallelPartition{
		Partitions:   []Primitive{first, second},
		MaxParallel:  2,
		OutputFields: fields,
	}
	stream, err := p.Exec(ctx, newTestContext())
	require.NoError(t, err)
	defer stream.Close()

	<-first.started
	<-second.started
	cancel()

	_, err = stream.Next()
	require.Error(t, err)
	assert.Equal(t, dverrors.Cancelled, dverrors.CodeOf(err))

	// every in-flight partition unblocks once cancellation propagates
	<-first.exited
	<-second.exited

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParallelPartitionCloseReleasesWorkers(t *testing.T) {
	fields := sqltypes.MakeTestFields("name", "text")
	first, second := newBlockingPrimitive(), newBlockingPrimitive()

	p := &ParallelPartition{
		Partitions:   []Primitive{first, second},
		MaxParallel:  2,
		OutputFields: fields,
	}
	stream, err := p.Exec(context.Background(), newTestContext())
	require.NoError(t, err)

	<-first.started
	<-second.started
	stream.Close()

	<-first.exited
	<-second.exited

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParallelPartitionDegradePartial(t *testing.T) {
	fields := sqltypes.MakeTestFields("name", "text")
	parts := []Primitive{
		&fakePrimitive{result: sqltypes.MakeTestResult(fields, "a", "b")},
		&fakePrimitive{execErr: errors.New("partition exploded")},
	}

	pctx := newTestContext()
	pctx.OnPartitionError = DegradePartial

	result := runPrimitive(t, &ParallelPartition{
		Partitions:   parts,
		MaxParallel:  2,
		OutputFields: fields,
	}, pctx)

	assert.ElementsMatch(t, sqltypes.MakeTestResult(fields, "a", "b").Rows, result.Rows)
	warnings := pctx.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "partition 1 failed, result is partial")
	assert.Contains(t, warnings[0], "partition exploded")
}
