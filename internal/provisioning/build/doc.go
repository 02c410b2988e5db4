// Package build runs the final, billable step of a create: Terraform for a
// jumphost, the create playbook for a cluster. A cancellable countdown
// precedes it; aborting there undoes the create.
package build
