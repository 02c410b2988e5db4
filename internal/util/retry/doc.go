// Package retry retries cloud calls that fail transiently, such as IAM
// eventual consistency or dependency conflicts during teardown.
//
// [WithExponentialBackoff] runs an operation until it succeeds, returns a
// [Fatal] error, exhausts its attempts, or the context ends.
package retry
