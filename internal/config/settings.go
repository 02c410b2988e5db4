package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSettingsFile is looked up in the working directory when --config is not set.
const DefaultSettingsFile = "hpcmaker.yaml"

// Settings is the explicit configuration object handed to every component.
type Settings struct {
	// StateDir is the root of the per-tier state tree.
	StateDir string `yaml:"state_dir"`

	// TemplatesDir overrides the embedded templates when set.
	TemplatesDir string `yaml:"templates_dir"`

	// PlaybookDir is where create_*/delete_* playbooks live.
	PlaybookDir string `yaml:"playbook_dir"`

	Tools    ToolPaths        `yaml:"tools"`
	AWS      AWSSettings      `yaml:"aws"`
	Notify   NotifySettings   `yaml:"notify"`
	Instance InstanceDefaults `yaml:"instance"`

	// MetricsFile, when set, receives phase metrics in the node-exporter
	// textfile format after every run.
	MetricsFile string `yaml:"metrics_file"`

	// ConfirmDelay is the cancellable window before destructive steps.
	ConfirmDelay time.Duration `yaml:"confirm_delay"`
}

// ToolPaths names the external executables.
type ToolPaths struct {
	Ansible         string `yaml:"ansible"`
	AnsiblePlaybook string `yaml:"ansible_playbook"`
	Terraform       string `yaml:"terraform"`
	Pcluster        string `yaml:"pcluster"`
	Python          string `yaml:"python"`
	SSH             string `yaml:"ssh"`
}

// AWSSettings selects credentials. Static keys win over a named profile.
type AWSSettings struct {
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	TurbotAccount   string `yaml:"turbot_account"`
}

// NotifySettings configures lifecycle notices beyond the per-entity SNS topic.
type NotifySettings struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// InstanceDefaults are written into every vars file.
type InstanceDefaults struct {
	InstanceType   string `yaml:"instance_type"`
	VolumeType     string `yaml:"volume_type"`
	RootVolumeSize int    `yaml:"root_volume_size"`
	EBSOptimized   bool   `yaml:"ebs_optimized"`
	BaseOS         string `yaml:"base_os"`
	User           string `yaml:"user"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

// LoadSettings reads settings from path. An empty path falls back to
// DefaultSettingsFile if it exists, and to defaults otherwise.
func LoadSettings(path string) (*Settings, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultSettingsFile
	}

	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings %s: %w", path, err)
	}
	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks values that defaults cannot repair.
func (s *Settings) Validate() error {
	if s.Instance.RootVolumeSize <= 0 {
		return fmt.Errorf("instance.root_volume_size must be positive, got %d", s.Instance.RootVolumeSize)
	}
	if s.ConfirmDelay < 0 {
		return fmt.Errorf("confirm_delay must not be negative, got %v", s.ConfirmDelay)
	}
	if (s.AWS.AccessKeyID == "") != (s.AWS.SecretAccessKey == "") {
		return errors.New("aws.access_key_id and aws.secret_access_key must be set together")
	}
	return nil
}

func (s *Settings) applyDefaults() {
	if s.StateDir == "" {
		s.StateDir = "."
	}
	if s.PlaybookDir == "" {
		s.PlaybookDir = "."
	}
	setDefault(&s.Tools.Ansible, "ansible")
	setDefault(&s.Tools.AnsiblePlaybook, "ansible-playbook")
	setDefault(&s.Tools.Terraform, "terraform")
	setDefault(&s.Tools.Pcluster, "pcluster")
	setDefault(&s.Tools.Python, "python3")
	setDefault(&s.Tools.SSH, "ssh")
	setDefault(&s.AWS.TurbotAccount, "disabled")
	setDefault(&s.Notify.SubjectPrefix, "hpcmaker")
	setDefault(&s.Instance.InstanceType, "t2.micro")
	setDefault(&s.Instance.VolumeType, "gp2")
	setDefault(&s.Instance.BaseOS, "alinux2")
	setDefault(&s.Instance.User, "ec2-user")
	if s.Instance.RootVolumeSize == 0 {
		s.Instance.RootVolumeSize = 8
	}
	if s.ConfirmDelay == 0 {
		s.ConfirmDelay = 5 * time.Second
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Paths returns the state layout for e under the configured state dir.
func (s *Settings) Paths(e Entity) Paths {
	return NewPaths(s.StateDir, e)
}

// TurbotEnabled reports whether the turbot profile convention applies.
func (s *Settings) TurbotEnabled() bool {
	return s.AWS.TurbotAccount != "" && s.AWS.TurbotAccount != "disabled"
}

// ProfileFor returns the shared-config profile to use for owner, or ""
// for the SDK default chain.
func (s *Settings) ProfileFor(owner string) string {
	if s.TurbotEnabled() {
		return fmt.Sprintf("turbot__%s__%s", s.AWS.TurbotAccount, owner)
	}
	return s.AWS.Profile
}
