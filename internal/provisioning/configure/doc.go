// Package configure writes the configuration record of a new entity,
// renders the files its build needs into the working directory and runs
// the templates playbook that generates the rest.
package configure
