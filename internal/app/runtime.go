package app

import "os"

// TestMode reports whether the process runs under the integration harness.
// Test mode relaxes secure cookie flags so httptest clients work.
func TestMode() bool {
	return os.Getenv("CALIBRA_TEST_MODE") == "1"
}
