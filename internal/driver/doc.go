// Package driver runs the external build tools: ansible-playbook for
// templates, cluster builds and teardown, and terraform for jumphost
// instances. Both stream their output to the operator and are bounded by
// the configured timeouts.
package driver
