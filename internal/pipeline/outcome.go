package pipeline

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/fedutinova/speechcoach/internal/common"
)

// Outcome is the result of one stage: a value or the reason it is missing.
type Outcome[T any] struct {
	value T
	err   error
}

func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{value: v}
}

func Err[T any](err error) Outcome[T] {
	if err == nil {
		err = fmt.Errorf("%w: stage failed without a reason", common.ErrSystem)
	}
	return Outcome[T]{err: err}
}

func (o Outcome[T]) IsOk() bool {
	return o.err == nil
}

func (o Outcome[T]) Get() (T, error) {
	return o.value, o.err
}

// Ptr returns the value, or nil when the stage failed.
func (o Outcome[T]) Ptr() *T {
	if o.err != nil {
		return nil
	}
	v := o.value
	return &v
}

// runStage calls fn and turns a panic into a system error for stage.
func runStage[T any](stage string, fn func() (T, error)) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("stage panicked", "stage", stage, "panic", r, "stack", string(debug.Stack()))
			out = Err[T](fmt.Errorf("%w: stage %s panicked: %v", common.ErrSystem, stage, r))
		}
	}()

	v, err := fn()
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

var errNoLoader = fmt.Errorf("%w: no audio loader configured", common.ErrSystem)
