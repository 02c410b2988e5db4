// Package s3 manages the per-cluster data bucket.
//
// EnsureBucket creates the bucket in the client's region if it does not
// exist. DeleteBucket empties the bucket and removes it, treating a
// missing bucket as already deleted.
package s3
