// Package awscloud wraps the AWS control-plane calls hpcmaker makes
// directly: zone and network discovery, plus get-or-create and release of
// the dependent resources an entity needs before terraform runs.
//
// Every Ensure* method is idempotent: the resource is looked up by its
// deterministic name and only created when the lookup reports it absent.
package awscloud
