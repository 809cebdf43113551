// Package expert provides a minimal mixture-of-experts parameter holder that
// can be checkpointed. The state is a flat float64 vector plus an update
// counter, encoded as a protobuf Struct.
package expert

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrDimMismatch  = errors.New("expert: parameter dimension mismatch")
	ErrNameMismatch = errors.New("expert: state belongs to another expert")
	ErrBadState     = errors.New("expert: malformed state")
)

// Expert is one named parameter vector. It is safe for concurrent use.
type Expert struct {
	name string

	mu     sync.RWMutex
	params []float64
	steps  int64
}

// New creates an expert with dim parameters drawn from a seeded uniform
// distribution in [-0.5, 0.5).
func New(name string, dim int, seed uint64) *Expert {
	rng := rand.New(rand.NewPCG(seed, uint64(dim)))
	params := make([]float64, dim)
	for i := range params {
		params[i] = rng.Float64() - 0.5
	}
	return &Expert{name: name, params: params}
}

func (e *Expert) Name() string { return e.name }

// Params returns a copy of the parameters.
func (e *Expert) Params() []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]float64(nil), e.params...)
}

// Steps returns how many updates have been applied.
func (e *Expert) Steps() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.steps
}

// Apply performs one SGD step: params -= lr * grad.
func (e *Expert) Apply(grad []float64, lr float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(grad) != len(e.params) {
		return fmt.Errorf("%w: got %d, want %d", ErrDimMismatch, len(grad), len(e.params))
	}
	for i, g := range grad {
		e.params[i] -= lr * g
	}
	e.steps++
	return nil
}

// Snapshot encodes the current state.
func (e *Expert) Snapshot(ctx context.Context) ([]byte, error) {
	e.mu.RLock()
	values := make([]*structpb.Value, len(e.params))
	for i, p := range e.params {
		values[i] = structpb.NewNumberValue(p)
	}
	steps := e.steps
	e.mu.RUnlock()

	st := &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":   structpb.NewStringValue(e.name),
		"steps":  structpb.NewNumberValue(float64(steps)),
		"params": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
	return proto.MarshalOptions{Deterministic: true}.Marshal(st)
}

// Restore replaces the state with a previously captured snapshot. The
// dimension and name must match.
func (e *Expert) Restore(ctx context.Context, data []byte) error {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("%w: %v", ErrBadState, err)
	}

	name := st.GetFields()["name"].GetStringValue()
	if name != e.name {
		return fmt.Errorf("%w: %q", ErrNameMismatch, name)
	}
	list := st.GetFields()["params"].GetListValue()
	if list == nil {
		return fmt.Errorf("%w: no params", ErrBadState)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(list.GetValues()) != len(e.params) {
		return fmt.Errorf("%w: got %d, want %d", ErrDimMismatch, len(list.GetValues()), len(e.params))
	}
	params := make([]float64, len(e.params))
	for i, v := range list.GetValues() {
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return fmt.Errorf("%w: param %d is not a number", ErrBadState, i)
		}
		params[i] = v.GetNumberValue()
	}
	e.params = params
	e.steps = int64(st.GetFields()["steps"].GetNumberValue())
	return nil
}
