// Package orchestration provides high-level workflow coordination for the
// create pipeline.
//
// This package orchestrates a create by delegating to the provisioners in
// the internal/provisioning subpackages. It defines the execution order
// and nothing else; each phase owns its own work.
//
// # Workflow
//
// The Reconciler executes the following phases in order:
//  1. Validation - identifiers, zone, existing records and external tools
//  2. Registration - serial allocation in the registry
//  3. Resources - discovery and the dependent AWS resources
//  4. Configure - vars file, rendered templates, templates playbook
//  5. Build - confirm window, then Terraform or the create playbook
//
// # Usage
//
//	reconciler := orchestration.NewReconciler()
//	err := reconciler.Reconcile(pctx)
//
// A failed create leaves its records in place, so running it again reuses
// the serial and every resource name derived from it.
package orchestration
