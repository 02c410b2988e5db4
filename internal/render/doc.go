// Package render writes the vars file and renders the policy, Terraform
// input and notice templates.
//
// The vars file is a flat YAML mapping built from an ordered [Record].
// Some values hold Jinja expressions ("{{ local_workingdir }}/...") that
// the playbooks expand later, so values are encoded as YAML scalars and
// never passed through a template engine here.
//
// Templates use text/template with the sprig function set. Values are
// passed as data; missing keys are errors.
package render
