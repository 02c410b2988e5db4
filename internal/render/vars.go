package render

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/provisioning"
)

// DeploymentDateLayout is the DEPLOYMENT_DATE format, e.g. "April 20, 2019".
const DeploymentDateLayout = "January 2, 2006"

// undefinedProject is written when no project id was given.
const undefinedProject = "UNDEFINED"

// KeyFingerprintKey holds the SHA256 fingerprint of the entity's private key.
const KeyFingerprintKey = "ssh_key_fingerprint"

// BuildVars produces the vars file for the entity in ctx. It must run
// after discovery and resource creation have populated ctx.State.
func BuildVars(ctx *provisioning.Context) *Record {
	e := ctx.Entity
	st := ctx.State
	kind := string(e.Kind)
	name := e.FullName()
	inst := ctx.Settings.Instance

	instanceType := inst.InstanceType
	if ctx.Request.InstanceType != "" {
		instanceType = ctx.Request.InstanceType
	}
	rootSize := inst.RootVolumeSize
	if ctx.Request.RootVolumeSize > 0 {
		rootSize = ctx.Request.RootVolumeSize
	}
	projectID := ctx.Request.ProjectID
	if projectID == "" {
		projectID = undefinedProject
	}
	department := ctx.Request.Department
	if department == "" {
		department = config.DefaultDepartment
	}

	var (
		topicARN, sgID, subnetID, vpcID string
		keyName, keyFingerprint          string
	)
	if st.Topic != nil {
		topicARN = st.Topic.ARN
	}
	if st.SecurityGroup != nil {
		sgID = st.SecurityGroup.ID
	}
	if st.Subnet != nil {
		subnetID, vpcID = st.Subnet.ID, st.Subnet.VPCID
	}
	if st.KeyPair != nil {
		keyName, keyFingerprint = st.KeyPair.Name, st.KeyPair.Fingerprint
	} else {
		keyName = st.Names.KeyPair
	}

	rec := &Record{Header: header(name, kind, ctx.Now().Format(DeploymentDateLayout))}

	rec.Section("Build tool information").
		Add("ansible_version", st.ToolVersions["ansible"]).
		Add("remove_"+kind+"_data_dir", true).
		Add("vars_file_path", ctx.Paths.VarsFile()).
		Add("DEPLOYMENT_DATE", ctx.Now().Format(DeploymentDateLayout))

	rec.Section("SNS topic").
		Add("sns_arn", topicARN)

	rec.Section("IAM parameters").
		Add(kind+"_iam_instance_policy", st.Names.Policy).
		Add(kind+"_iam_instance_profile", st.Names.Profile).
		Add(kind+"_iam_instance_role", st.Names.Role)

	rec.Section("EC2 instance parameters").
		Add("aws_account_id", st.Account).
		Add("aws_ami", st.AMI).
		Add("base_os", inst.BaseOS).
		Add("ec2_instance_type", instanceType).
		Add("ec2_keypair", keyName).
		Add("ec2_user", inst.User).
		Add("ec2_user_home", "/home/"+inst.User).
		Add("ec2_user_src", "{{ ec2_user_home }}/src").
		Add("instance_data_dir", fmt.Sprintf("{{ local_workingdir }}/%s/{{ instance_name }}", relDataDir(ctx.Paths))).
		Add("instance_name", name).
		Add("instance_owner", e.Owner).
		Add("instance_owner_department", department).
		Add("instance_owner_email", ctx.Request.Email).
		Add("instance_serial_number", st.Serial.ResourceID()).
		Add("instance_serial_number_file", ctx.Paths.SerialFile()).
		Add("prod_level", e.Tier).
		Add("project_id", projectID).
		Add("ssh_keypair_file", "{{ ec2_keypair }}.pem").
		Add(KeyFingerprintKey, keyFingerprint).
		Add("ssh_known_hosts", "~/.ssh/known_hosts").
		Add("turbot_account", ctx.Settings.AWS.TurbotAccount)

	rec.Section("EBS").
		Add("ebs_optimized", inst.EBSOptimized).
		Add("ebs_volume_type", inst.VolumeType).
		Add("instance_root_volume_size", rootSize)

	rec.Section("AWS networking").
		Add("az", e.Zone).
		Add("region", e.Region()).
		Add("security_group", st.Names.SecurityGroup).
		Add("subnet_id", subnetID).
		Add("vpc_id", vpcID).
		Add("vpc_name", st.VPCName).
		Add("vpc_security_group_ids", sgID)

	if e.Kind == config.KindCluster {
		rec.Section("Cluster storage").
			Add("s3_bucketname", st.Names.Bucket)
	}

	if e.Kind == config.KindJumphost {
		rec.Section("Terraform").
			Add("terraform_version", st.ToolVersions["terraform"]).
			Add("provider", "aws.{{ vpc_name }}").
			Add("provider_tf_src", "{{ local_workingdir }}/templates/provider_aws.j2").
			Add("provider_tf_dest", "provider_aws.tf").
			Add("tf_ec2_instance_src", "{{ local_workingdir }}/templates/DEFAULT_EC2_TEMPLATE.j2").
			Add("tf_ec2_instance_dest", "{{ instance_name }}.tf")
	}

	rec.Section("Template paths")
	for _, script := range []string{"access", "build", "kill"} {
		rec.Add(fmt.Sprintf("%s_%s_src", script, kind), fmt.Sprintf("{{ local_workingdir }}/templates/%s_%s.j2", script, kind)).
			Add(fmt.Sprintf("%s_%s_script", script, kind), fmt.Sprintf("%s_%s.{{ instance_name }}.sh", script, kind))
	}
	rec.Add("stage_dir_parent", "/tmp/_stagedir_hpcmaker").
		Add("stage_dir", "{{ stage_dir_parent }}/{{ instance_name }}")

	return rec
}

func header(name, kind, deployed string) []string {
	rule := strings.Repeat("#", 78)
	return []string{
		rule,
		"Name:        " + name + ".yml",
		"Deployed On: " + deployed,
		"Purpose:     Build template for " + kind + " " + name,
		rule,
	}
}

// relDataDir is the working directory parent relative to the tier dir,
// which is what local_workingdir points at.
func relDataDir(p config.Paths) string {
	rel, err := filepath.Rel(p.TierDir(), filepath.Dir(p.WorkDir()))
	if err != nil {
		return string(p.Kind) + "_data"
	}
	return filepath.ToSlash(rel)
}

// PolicyDataFor returns the policy template inputs for ctx.
func PolicyDataFor(ctx *provisioning.Context) PolicyData {
	var topicARN string
	if ctx.State.Topic != nil {
		topicARN = ctx.State.Topic.ARN
	}
	return PolicyData{
		Kind:       string(ctx.Entity.Kind),
		Account:    ctx.State.Account,
		Region:     ctx.Entity.Region(),
		Tier:       ctx.Entity.Tier,
		Owner:      ctx.Entity.Owner,
		Serial:     ctx.State.Serial.String(),
		ResourceID: ctx.State.Serial.ResourceID(),
		Bucket:     ctx.State.Names.Bucket,
		TopicARN:   topicARN,
	}
}

// TFVarsDataFor returns the Terraform inputs for ctx.
func TFVarsDataFor(ctx *provisioning.Context) TFVarsData {
	st := ctx.State
	inst := ctx.Settings.Instance
	d := TFVarsData{
		Name:           ctx.Entity.FullName(),
		Region:         ctx.Entity.Region(),
		Zone:           ctx.Entity.Zone,
		AMI:            st.AMI,
		InstanceType:   inst.InstanceType,
		KeyName:        st.Names.KeyPair,
		Profile:        st.Names.Profile,
		RootVolumeSize: inst.RootVolumeSize,
		VolumeType:     inst.VolumeType,
		EBSOptimized:   inst.EBSOptimized,
		Tags: map[string]string{
			"Name":          ctx.Entity.FullName(),
			"Owner":         ctx.Entity.Owner,
			"Tier":          ctx.Entity.Tier,
			"Serial":        st.Serial.String(),
			"Department":    ctx.Request.Department,
			"ProjectID":     ctx.Request.ProjectID,
			"ManagedBy":     "hpcmaker",
			"hpcmaker/kind": string(ctx.Entity.Kind),
		},
	}
	if ctx.Request.InstanceType != "" {
		d.InstanceType = ctx.Request.InstanceType
	}
	if ctx.Request.RootVolumeSize > 0 {
		d.RootVolumeSize = ctx.Request.RootVolumeSize
	}
	if st.Subnet != nil {
		d.SubnetID = st.Subnet.ID
	}
	if st.SecurityGroup != nil {
		d.SecurityGroupID = st.SecurityGroup.ID
	}
	return d
}

// NoticeDataFor returns the creation notice inputs for ctx.
func NoticeDataFor(ctx *provisioning.Context) NoticeData {
	now := ctx.Now()
	return NoticeData{
		Kind:      string(ctx.Entity.Kind),
		Name:      ctx.Entity.FullName(),
		Serial:    ctx.State.Serial.String(),
		Region:    ctx.Entity.Region(),
		Zone:      ctx.Entity.Zone,
		Owner:     ctx.Entity.Owner,
		DateStamp: now.Format("2006-01-02"),
		TimeStamp: now.Format("15:04:05 MST"),
	}
}
