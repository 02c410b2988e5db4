// Package testing provides builders, fixtures and mocks shared by the
// provisioning, teardown and CLI tests.
//
//   - EntityBuilder: fluent builder for entity identifiers
//   - Fixture: temp state tree, open registry and mock collaborators
//   - MockPlaybookRunner, MockTerraform: testify mocks for the process drivers
//   - RecordingNotifier, MemoryBuckets: in-memory notifier and bucket store
//
// Usage:
//
//	f := testing.NewFixture(t, testing.NewEntityBuilder().WithName("test01").Build())
//	ctx := f.Context(&provisioning.Request{Email: "alice@example.com"})
package testing
