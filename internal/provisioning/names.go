package provisioning

import (
	"path/filepath"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/registry"
	"github.com/imamik/hpcmaker/internal/util/naming"
)

// Names are the deterministic resource names of one entity generation.
// Create and teardown both derive them from the serial, so nothing beyond
// the serial record is needed to find an entity's resources.
type Names struct {
	SecurityGroup string
	KeyPair       string
	PEMPath       string
	Role          string
	Policy        string
	Profile       string
	Topic         string
	Bucket        string // empty for jumphosts
}

// ResourceNames derives the names for e from its serial. An empty
// securityGroup selects the shared default for the kind.
func ResourceNames(e config.Entity, paths config.Paths, serial registry.Serial, securityGroup string) Names {
	rid := serial.ResourceID()
	if securityGroup == "" {
		securityGroup = naming.SecurityGroup(e.Kind)
	}

	keyName := naming.KeyPair(rid, e.Region())
	n := Names{
		SecurityGroup: securityGroup,
		KeyPair:       keyName,
		PEMPath:       filepath.Join(paths.WorkDir(), naming.PEMFile(keyName)),
		Role:          naming.Role(e.Kind, rid),
		Policy:        naming.Policy(e.Kind, rid),
		Profile:       naming.InstanceProfile(e.Kind, rid),
		Topic:         naming.Topic(e.Kind, rid),
	}
	if e.Kind == config.KindCluster {
		n.Bucket = naming.Bucket(rid)
	}
	return n
}
