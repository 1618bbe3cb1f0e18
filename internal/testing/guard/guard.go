// Package guard flips the process into test mode when imported, so binaries
// built for tests skip opening Redis, Postgres and listeners.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SENTINEL_TEST_MODE") == "" {
			_ = os.Setenv("SENTINEL_TEST_MODE", "1")
		}
	})
}
