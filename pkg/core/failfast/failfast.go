package failfast

import (
	"fmt"
	"reflect"
	"time"
)

// NotNil panics if v is nil, including typed nil pointers, funcs, maps and
// channels. Constructors use it to reject missing collaborators early.
func NotNil(v interface{}, name string) {
	if v == nil {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Chan, reflect.Interface, reflect.Slice:
		if rv.IsNil() {
			panic(fmt.Errorf("fail-fast: %s is nil", name))
		}
	}
}

// If panics if condition is false
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+message, args...))
	}
}

// Positive panics unless d > 0.
func Positive(d time.Duration, name string) {
	if d <= 0 {
		panic(fmt.Errorf("fail-fast: %s must be positive, got %v", name, d))
	}
}
