// +build !debug

package debug

import "sync"

func Assert(cond bool, a ...interface{})    {}
func AssertNoErr(err error)                 {}
func Assertf(cond bool, f string, a ...interface{}) {}
func AssertMutexLocked(m *sync.Mutex)       {}
