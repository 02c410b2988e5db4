package testing

import (
	"github.com/imamik/hpcmaker/internal/config"
)

// EntityBuilder provides a fluent interface for constructing test entities.
// Each method returns a new builder (immutable) for chaining.
type EntityBuilder struct {
	e config.Entity
}

// NewEntityBuilder returns alice's dev jumphost test01 in us-east-1a.
func NewEntityBuilder() *EntityBuilder {
	return &EntityBuilder{e: config.Entity{
		Kind:  config.KindJumphost,
		Owner: "alice",
		Name:  "test01",
		Tier:  config.DefaultTier,
		Zone:  "us-east-1a",
	}}
}

// WithKind sets the entity kind.
func (b *EntityBuilder) WithKind(k config.Kind) *EntityBuilder {
	nb := *b
	nb.e.Kind = k
	return &nb
}

// WithOwner sets the owner.
func (b *EntityBuilder) WithOwner(owner string) *EntityBuilder {
	nb := *b
	nb.e.Owner = owner
	return &nb
}

// WithName sets the birth name.
func (b *EntityBuilder) WithName(name string) *EntityBuilder {
	nb := *b
	nb.e.Name = name
	return &nb
}

// WithZone sets the availability zone.
func (b *EntityBuilder) WithZone(zone string) *EntityBuilder {
	nb := *b
	nb.e.Zone = zone
	return &nb
}

// WithTier sets the operating tier.
func (b *EntityBuilder) WithTier(tier string) *EntityBuilder {
	nb := *b
	nb.e.Tier = tier
	return &nb
}

// Build returns the entity.
func (b *EntityBuilder) Build() config.Entity {
	return b.e
}

// Cluster is shorthand for a cluster with the default identifiers.
func Cluster() config.Entity {
	return NewEntityBuilder().WithKind(config.KindCluster).Build()
}

// Jumphost is shorthand for a jumphost with the default identifiers.
func Jumphost() config.Entity {
	return NewEntityBuilder().Build()
}
