// Package resources discovers the placement of an entity and ensures its
// dependent AWS resources: security group, key pair, SNS topic, IAM role
// and instance profile, and for clusters the S3 data bucket.
//
// Every ensure is get-or-create keyed by the deterministic names derived
// from the serial, so a failed create can simply be rerun. Release deletes
// the same resources at teardown; resources that are already gone count
// as released.
package resources
