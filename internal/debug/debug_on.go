// +build debug

// Package debug provides cheap runtime assertions that compile in only
// under the "debug" build tag.
package debug

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/vsearchio/vsearch/internal/xlog"
)

func _panic(a ...interface{}) {
	msg := "DEBUG PANIC: " + fmt.Sprint(a...)
	xlog.Errorf("%s", msg)
	panic(msg)
}

// Assert panics (in debug builds only) if cond is false.
func Assert(cond bool, a ...interface{}) {
	if !cond {
		_panic(a...)
	}
}

func AssertNoErr(err error) {
	if err != nil {
		_panic(err)
	}
}

func Assertf(cond bool, f string, a ...interface{}) {
	if !cond {
		_panic(fmt.Sprintf(f, a...))
	}
}

// AssertMutexLocked checks, via reflection, that m is currently held.
// Useful for catching call-without-lock bugs in MetaService during
// development.
func AssertMutexLocked(m *sync.Mutex) {
	state := reflect.ValueOf(m).Elem().FieldByName("state")
	Assertf(state.Int()&1 == 1, "mutex not locked")
}
