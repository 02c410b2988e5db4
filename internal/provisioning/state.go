package provisioning

import (
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/registry"
)

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes and is passed
// to subsequent phases that need earlier results.
type State struct {
	// Registration results
	Serial        registry.Serial
	SerialCreated bool // false when an earlier run's serial was reused

	// Validation results
	ToolVersions map[string]string // tool name -> version

	// Discovery results
	Account string
	Subnet  *awscloud.Subnet
	VPCName string
	AMI     string

	// Resource results
	Names         Names
	SecurityGroup *awscloud.SecurityGroup
	KeyPair       *awscloud.KeyPair
	Role          *awscloud.Role
	Profile       *awscloud.InstanceProfile
	Topic         *awscloud.Topic
	Bucket        string

	// Configure results
	VarsFile   string
	PolicyFile string
	TFVarsFile string
}

// NewState creates an empty provisioning state.
func NewState() *State {
	return &State{
		ToolVersions: make(map[string]string),
	}
}
