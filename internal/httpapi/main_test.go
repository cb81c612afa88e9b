//go:build !integration

// Integration tests leave testcontainers goroutines behind, so the leak
// check only runs with the unit tests.
package httpapi

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
