package utils

import (
	"log"
	"runtime/debug"
)

// GoSafe runs fn in a goroutine and recovers from panics so a single
// failing worker cannot take down the process.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered from panic in goroutine: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
