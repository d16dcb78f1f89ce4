package compose

import "sync"

// current is the optional secondary global accessor, generalizing the
// teacher's GlobalLocator (libs/core/locator.go) down to a single
// *Container slot. It is kept strictly secondary to passing a *Container
// explicitly: code that can take a constructor parameter or receive the
// container from CreateScope should do that instead (spec §9 design
// notes). This exists for bootstrap code (main.go, cmd/*) that needs a
// process-wide handle before any request-scoped plumbing exists.
var (
	current   *Container
	currentMu sync.RWMutex
)

// SetCurrent installs c as the process-wide container.
func SetCurrent(c *Container) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = c
}

// Current returns the process-wide container set via SetCurrent, or nil
// if none has been installed yet.
func Current() *Container {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// Locate resolves T from the process-wide container. It panics if no
// container has been installed, since call sites that reach for this
// helper have no other way to report the error to their caller; prefer
// Resolve[T](container) wherever a container is reachable directly.
func Locate[T any]() T {
	c := Current()
	if c == nil {
		panic("compose: Locate called before SetCurrent")
	}
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}
