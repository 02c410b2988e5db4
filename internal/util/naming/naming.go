package naming

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/imamik/hpcmaker/internal/config"
)

// Working-directory artifacts.
const (
	PolicyFile = "InstancePolicy.json"
	TFVarsFile = "terraform.auto.tfvars.json"
	PlanFile   = "terraform_environment"
)

// AWS name length limits.
const (
	MaxRoleLen            = 64
	MaxPolicyLen          = 128
	MaxInstanceProfileLen = 128
	MaxTopicLen           = 256
	MaxKeyPairLen         = 255
	MaxBucketLen          = 63
)

const bucketPrefix = "hpcmaker-"

// SecurityGroup is the default shared security group for kind.
func SecurityGroup(kind config.Kind) string {
	return fmt.Sprintf("parallelclustermaker_%s", kind)
}

func KeyPair(resourceID, region string) string {
	return fmt.Sprintf("%s_%s", resourceID, region)
}

// PEMFile is the private key file name for a key pair.
func PEMFile(keyName string) string {
	return keyName + ".pem"
}

func Role(kind config.Kind, resourceID string) string {
	return fmt.Sprintf("%smaker-role-%s", kind, resourceID)
}

func Policy(kind config.Kind, resourceID string) string {
	return fmt.Sprintf("%smaker-policy-%s", kind, resourceID)
}

func InstanceProfile(kind config.Kind, resourceID string) string {
	return fmt.Sprintf("%smaker-profile-%s", kind, resourceID)
}

func Topic(kind config.Kind, resourceID string) string {
	return fmt.Sprintf("ParallelClusterMaker_%s_SNS_Alerts_%s", kind.Title(), resourceID)
}

// Bucket turns a resource id into a valid S3 bucket name: lowercase,
// only [a-z0-9.-], no leading or trailing punctuation, at most 63 characters.
// Names longer than that are cut, which can drop part of the serial digest;
// BucketFits reports whether resourceID is short enough to be kept whole.
func Bucket(resourceID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(bucketPrefix + resourceID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	name := b.String()
	if len(name) > MaxBucketLen {
		name = name[:MaxBucketLen]
	}
	return strings.Trim(name, ".-")
}

// BucketFits reports whether Bucket keeps resourceID without truncation.
func BucketFits(resourceID string) bool {
	return utf8.RuneCountInString(bucketPrefix+resourceID) <= MaxBucketLen
}

// Playbooks for kind.
func TemplatesPlaybook(kind config.Kind) string {
	return fmt.Sprintf("create_%s_templates.yml", kind)
}

func BuildPlaybook(kind config.Kind) string {
	return fmt.Sprintf("create_%s.yml", kind)
}

func DeletePlaybook(kind config.Kind) string {
	return fmt.Sprintf("delete_%s.yml", kind)
}

// AccessScript is generated into the cluster working directory by the
// templates playbook.
func AccessScript(entity string) string {
	return fmt.Sprintf("access_cluster.%s.py", entity)
}
