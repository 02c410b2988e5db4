package config

import (
	"path/filepath"
	"slices"
	"strings"
)

// Kind is the type of entity managed by hpcmaker.
type Kind string

const (
	KindJumphost Kind = "jumphost"
	KindCluster  Kind = "cluster"
)

// Valid reports whether k is a known entity kind.
func (k Kind) Valid() bool {
	return k == KindJumphost || k == KindCluster
}

// Title returns the capitalized kind, used in topic names and notices.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Tier values accepted by --prod_level.
var Tiers = []string{"dev", "test", "stage", "prod"}

// DefaultTier is used when --prod_level is not given.
const DefaultTier = "dev"

// Departments accepted by --instance_owner_department.
var Departments = []string{
	"analytics", "clinical", "commercial", "compbio", "compchem", "datasci",
	"design", "development", "hpc", "imaging", "manufacturing", "medical",
	"modeling", "operations", "proteomics", "robotics", "qa", "research", "scicomp",
}

// DefaultDepartment is used when --instance_owner_department is not given.
const DefaultDepartment = "hpc"

// IsTier reports whether s is a valid operating tier.
func IsTier(s string) bool { return slices.Contains(Tiers, s) }

// IsDepartment reports whether s is a valid owner department.
func IsDepartment(s string) bool { return slices.Contains(Departments, s) }

// Entity identifies one cluster or jumphost.
type Entity struct {
	Kind  Kind
	Owner string
	Name  string // birth name as given on the command line
	Tier  string
	Zone  string
}

// FullName returns the composite owner-name used as the registry key.
func (e Entity) FullName() string {
	return e.Owner + "-" + e.Name
}

// Region derives the region from the availability zone by dropping the
// trailing zone letter (us-east-1a -> us-east-1).
func (e Entity) Region() string {
	if len(e.Zone) < 2 {
		return ""
	}
	return e.Zone[:len(e.Zone)-1]
}

// Paths resolves the on-disk layout for one entity.
//
//	<root>/registry.db
//	<root>/<tier>/vars_files/<entity>.yml
//	<root>/<tier>/active_<kind>s/<entity>.serial
//	<root>/<tier>/<kind>_data/<entity>/
type Paths struct {
	Root   string
	Tier   string
	Kind   Kind
	Entity string
}

// NewPaths returns the layout for e rooted at root.
func NewPaths(root string, e Entity) Paths {
	return Paths{Root: root, Tier: e.Tier, Kind: e.Kind, Entity: e.FullName()}
}

// RegistryDB is shared by all tiers and kinds.
func (p Paths) RegistryDB() string {
	return filepath.Join(p.Root, "registry.db")
}

func (p Paths) TierDir() string {
	return filepath.Join(p.Root, p.Tier)
}

func (p Paths) VarsDir() string {
	return filepath.Join(p.TierDir(), "vars_files")
}

func (p Paths) VarsFile() string {
	return filepath.Join(p.VarsDir(), p.Entity+".yml")
}

func (p Paths) SerialDir() string {
	return filepath.Join(p.TierDir(), "active_"+string(p.Kind)+"s")
}

func (p Paths) SerialFile() string {
	return filepath.Join(p.SerialDir(), p.Entity+".serial")
}

// WorkDir holds the private key, rendered policy and terraform files.
func (p Paths) WorkDir() string {
	return filepath.Join(p.TierDir(), string(p.Kind)+"_data", p.Entity)
}
