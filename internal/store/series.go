package store

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/stockflow/internal/trajectory"
)

const (
	timeColumn   = "t"
	roleKey      = "role"
	roleState    = "state"
	roleObserved = "observed"
)

// encodeSeries packs a solution into one Arrow record: a time column followed
// by one float64 column per variable, tagged with its role. Series shorter
// than the time axis are padded with nulls.
func encodeSeries(sol trajectory.Solution) ([]byte, error) {
	mem := memory.NewGoAllocator()
	times := sol.Times()

	fields := []arrow.Field{{Name: timeColumn, Type: arrow.PrimitiveTypes.Float64}}
	var names []string
	for _, group := range []struct {
		role  string
		names []string
	}{{roleState, sol.States()}, {roleObserved, sol.Observed()}} {
		for _, name := range group.names {
			fields = append(fields, arrow.Field{
				Name:     name,
				Type:     arrow.PrimitiveTypes.Float64,
				Nullable: true,
				Metadata: arrow.NewMetadata([]string{roleKey}, []string{group.role}),
			})
			names = append(names, name)
		}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Float64Builder).AppendValues(times, nil)
	for i, name := range names {
		fb := b.Field(i + 1).(*array.Float64Builder)
		values, _ := sol.Series(name)
		if len(values) > len(times) {
			values = values[:len(times)]
		}
		fb.AppendValues(values, nil)
		for j := len(values); j < len(times); j++ {
			fb.AppendNull()
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := w.Write(rec); err != nil {
		return nil, fmt.Errorf("writing series record: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing series writer: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSeries reverses encodeSeries. Trailing nulls are dropped, so short
// series come back short.
func decodeSeries(data []byte) (*trajectory.Memory, error) {
	mem := memory.NewGoAllocator()
	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("reading series: %w", err)
	}
	defer r.Release()

	schema := r.Schema()
	var times []float64
	states := make(map[string][]float64)
	observed := make(map[string][]float64)
	for r.Next() {
		rec := r.Record()
		for i, field := range schema.Fields() {
			col, ok := rec.Column(i).(*array.Float64)
			if !ok {
				return nil, fmt.Errorf("column %q is %s, want float64", field.Name, rec.Column(i).DataType())
			}
			values := make([]float64, 0, col.Len())
			for j := 0; j < col.Len() && !col.IsNull(j); j++ {
				values = append(values, col.Value(j))
			}
			if i == 0 {
				times = append(times, values...)
				continue
			}
			role := roleState
			if k := field.Metadata.FindKey(roleKey); k >= 0 {
				role = field.Metadata.Values()[k]
			}
			if role == roleObserved {
				observed[field.Name] = append(observed[field.Name], values...)
			} else {
				states[field.Name] = append(states[field.Name], values...)
			}
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading series: %w", err)
	}
	return trajectory.FromSeries(times, states, observed), nil
}
