package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntity_FullNameAndRegion(t *testing.T) {
	t.Parallel()
	e := Entity{Kind: KindJumphost, Owner: "alice", Name: "test01", Tier: "dev", Zone: "us-east-1a"}

	assert.Equal(t, "alice-test01", e.FullName())
	assert.Equal(t, "us-east-1", e.Region())
	assert.Empty(t, Entity{Zone: "a"}.Region())
}

func TestPaths_Layout(t *testing.T) {
	t.Parallel()
	e := Entity{Kind: KindCluster, Owner: "bob", Name: "hpc1", Tier: "prod", Zone: "eu-west-1b"}
	p := NewPaths("/state", e)

	assert.Equal(t, filepath.FromSlash("/state/registry.db"), p.RegistryDB())
	assert.Equal(t, filepath.FromSlash("/state/prod/vars_files/bob-hpc1.yml"), p.VarsFile())
	assert.Equal(t, filepath.FromSlash("/state/prod/active_clusters/bob-hpc1.serial"), p.SerialFile())
	assert.Equal(t, filepath.FromSlash("/state/prod/cluster_data/bob-hpc1"), p.WorkDir())
}

func TestEnumerations(t *testing.T) {
	t.Parallel()
	assert.True(t, IsTier("stage"))
	assert.False(t, IsTier("staging"))
	assert.True(t, IsDepartment(DefaultDepartment))
	assert.False(t, IsDepartment("finance"))
	assert.True(t, KindCluster.Valid())
	assert.False(t, Kind("vm").Valid())
	assert.Equal(t, "Jumphost", KindJumphost.Title())
}
