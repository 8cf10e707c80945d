// Package test contains a test suite for backends.
//
// # Overview
//
// For the test suite to work, a function that opens a fresh, empty backend
// needs to be provided. Cleanup runs after all tests have finished.
//
//	func newTestSuite(t testing.TB) *test.Suite {
//		return &test.Suite{
//			Open: func() (backend.Backend, error) {
//				return mem.New(), nil
//			},
//		}
//	}
//
//	func TestSuiteBackendMem(t *testing.T) {
//		newTestSuite(t).RunTests(t)
//	}
//
// The functions are run in alphabetical order.
//
// # Add new tests
//
// A new test can be added by implementing a method on *Suite with the name
// starting with "Test" and a single *testing.T parameter.
package test
