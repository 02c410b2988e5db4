package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_MissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := LoadSettings("")
	require.NoError(t, err)

	assert.Equal(t, ".", s.StateDir)
	assert.Equal(t, "terraform", s.Tools.Terraform)
	assert.Equal(t, "ansible-playbook", s.Tools.AnsiblePlaybook)
	assert.Equal(t, "t2.micro", s.Instance.InstanceType)
	assert.Equal(t, "gp2", s.Instance.VolumeType)
	assert.Equal(t, 8, s.Instance.RootVolumeSize)
	assert.False(t, s.Instance.EBSOptimized)
	assert.Equal(t, 5*time.Second, s.ConfirmDelay)
	assert.False(t, s.TurbotEnabled())
}

func TestLoadSettings_ExplicitMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read settings file")
}

func TestLoadSettings_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "hpcmaker.yaml")
	content := `
state_dir: /var/lib/hpcmaker
tools:
  terraform: /opt/bin/terraform
aws:
  turbot_account: "123456789012"
notify:
  nats_url: nats://localhost:4222
instance:
  instance_type: t3.small
  root_volume_size: 20
confirm_delay: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/hpcmaker", s.StateDir)
	assert.Equal(t, "/opt/bin/terraform", s.Tools.Terraform)
	assert.Equal(t, "ansible", s.Tools.Ansible)
	assert.Equal(t, "nats://localhost:4222", s.Notify.NATSURL)
	assert.Equal(t, "t3.small", s.Instance.InstanceType)
	assert.Equal(t, 20, s.Instance.RootVolumeSize)
	assert.Equal(t, 2*time.Second, s.ConfirmDelay)
	assert.True(t, s.TurbotEnabled())
	assert.Equal(t, "turbot__123456789012__alice", s.ProfileFor("alice"))
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "state_dir: [", "failed to unmarshal"},
		{"negative volume", "instance:\n  root_volume_size: -1\n", "root_volume_size"},
		{"half static credentials", "aws:\n  access_key_id: AKIA\n", "must be set together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "s.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := LoadSettings(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProfileFor_NoTurbot(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	assert.Empty(t, s.ProfileFor("alice"))

	s.AWS.Profile = "research"
	assert.Equal(t, "research", s.ProfileFor("alice"))
}
