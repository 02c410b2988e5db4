// Package provisioning provides shared types, interfaces, and orchestration
// for the entity lifecycle.
//
// # Subpackages
//
//   - registration/ allocates the serial number
//   - resources/ ensures and releases dependent cloud resources
//   - configure/ writes the vars file and renders templates
//   - build/ runs the compute build and announces it
//
// # Core Types
//
// Context carries settings, the entity, the collaborators and the state.
// Phase defines a step with Name() and Provision() methods. State
// accumulates results from each phase (serial, subnet, key pair, role,
// topic) so later phases and the vars file can use them.
package provisioning
