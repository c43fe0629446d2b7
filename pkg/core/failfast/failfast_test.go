package failfast

import (
	"testing"
	"time"
)

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected panic, got none")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("Expected error type, got: %T", r)
		}
		if err.Error() == "" {
			t.Error("Expected error message")
		}
	}()
	fn()
}

func expectNoPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Expected no panic, got: %v", r)
		}
	}()
	fn()
}

func TestNotNil(t *testing.T) {
	var nilPtr *int
	var nilFunc func()
	var nilChan chan int

	t.Run("untyped nil", func(t *testing.T) {
		expectPanic(t, func() { NotNil(nil, "value") })
	})
	t.Run("typed nil pointer", func(t *testing.T) {
		expectPanic(t, func() { NotNil(nilPtr, "ptr") })
	})
	t.Run("nil func", func(t *testing.T) {
		expectPanic(t, func() { NotNil(nilFunc, "fn") })
	})
	t.Run("nil chan", func(t *testing.T) {
		expectPanic(t, func() { NotNil(nilChan, "ch") })
	})
	t.Run("valid", func(t *testing.T) {
		v := 1
		expectNoPanic(t, func() { NotNil(&v, "ptr") })
		expectNoPanic(t, func() { NotNil("x", "str") })
	})
}

func TestIf(t *testing.T) {
	t.Run("condition true", func(t *testing.T) {
		expectNoPanic(t, func() { If(true, "never") })
	})
	t.Run("condition false", func(t *testing.T) {
		expectPanic(t, func() { If(false, "workers must be >= %d", 1) })
	})
}

func TestPositive(t *testing.T) {
	expectNoPanic(t, func() { Positive(time.Millisecond, "interval") })
	expectPanic(t, func() { Positive(0, "interval") })
	expectPanic(t, func() { Positive(-time.Second, "interval") })
}
