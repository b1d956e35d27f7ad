// Package apitest drives the assembled HTTP surface end to end with
// in-memory stores and an embedded Redis.
package apitest

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	os.Setenv("CALIBRA_TEST_MODE", "1")
	os.Exit(m.Run())
}
