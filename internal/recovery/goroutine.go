// Package recovery starts goroutines that log a panic instead of taking the
// whole process down.
package recovery

import (
	"fmt"
	"runtime/debug"

	"github.com/aira-metrics/dashboard/internal/logger"
)

// SafeGo runs fn in a goroutine with panic recovery.
func SafeGo(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// SafeGoWithCleanup runs fn in a goroutine with panic recovery. cleanup runs
// whether or not fn panicked.
func SafeGoWithCleanup(name string, fn func(), cleanup func()) {
	go func() {
		defer func() {
			if cleanup != nil {
				cleanup()
			}
		}()
		defer Recover(name)
		fn()
	}()
}

// Recover logs a panic in progress. It must be deferred directly.
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Errorf("🚨 panic recovered in %s: %v", name, r)
		logger.Debugf("stack trace:\n%s", debug.Stack())
	}
}

// Call runs fn and turns a panic into an error.
func Call(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf("stack trace:\n%s", debug.Stack())
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	fn()
	return nil
}
