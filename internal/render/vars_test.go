package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/registry"
	testutil "github.com/imamik/hpcmaker/internal/testing"
)

func populatedContext(t *testing.T, e config.Entity) *provisioning.Context {
	t.Helper()

	f := testutil.NewFixture(t, e)
	ctx := f.Context(&provisioning.Request{Email: "alice@example.com", Department: "hpc"})
	st := ctx.State
	st.Serial = registry.NewSerial(e.FullName(), testutil.FixedTime)
	st.Names = ctx.Names()
	st.Account = "123456789012"
	st.Subnet = &awscloud.Subnet{ID: "subnet-0abc", VPCID: "vpc-0abc"}
	st.VPCName = "research-vpc"
	st.AMI = "ami-0123456789abcdef0"
	st.SecurityGroup = &awscloud.SecurityGroup{ID: "sg-1", Name: st.Names.SecurityGroup}
	st.KeyPair = &awscloud.KeyPair{Name: st.Names.KeyPair, PEMPath: st.Names.PEMPath, Fingerprint: "SHA256:abc"}
	st.Topic = &awscloud.Topic{Name: st.Names.Topic, ARN: "arn:aws:sns:us-east-1:123456789012:" + st.Names.Topic}
	st.ToolVersions = map[string]string{"ansible": "2.9.27", "terraform": "v1.5.7"}
	return ctx
}

func TestBuildVars_Jumphost(t *testing.T) {
	t.Parallel()

	ctx := populatedContext(t, testutil.Jumphost())
	data, err := BuildVars(ctx).Marshal()
	require.NoError(t, err)

	vars, err := ParseRecord(data)
	require.NoError(t, err)

	assert.Equal(t, "alice-test01", vars["instance_name"])
	assert.Equal(t, "alice-test01-"+testutil.FixedDigest, vars["instance_serial_number"])
	assert.Equal(t, "us-east-1a", vars["az"])
	assert.Equal(t, "us-east-1", vars["region"])
	assert.Equal(t, "April 20, 2019", vars["DEPLOYMENT_DATE"])
	assert.Equal(t, "2.9.27", vars["ansible_version"])
	assert.Equal(t, "v1.5.7", vars["terraform_version"])
	assert.Equal(t, "jumphostmaker-role-alice-test01-"+testutil.FixedDigest, vars["jumphost_iam_instance_role"])
	assert.Equal(t, "UNDEFINED", vars["project_id"])
	assert.Equal(t, "SHA256:abc", vars[KeyFingerprintKey])
	assert.Equal(t, 8, vars["instance_root_volume_size"])
	assert.Equal(t, false, vars["ebs_optimized"])
	assert.Equal(t, "{{ local_workingdir }}/jumphost_data/{{ instance_name }}", vars["instance_data_dir"])
	assert.Equal(t, true, vars["remove_jumphost_data_dir"])
	assert.NotContains(t, vars, "s3_bucketname")
}

func TestBuildVars_Cluster(t *testing.T) {
	t.Parallel()

	ctx := populatedContext(t, testutil.Cluster())
	rec := BuildVars(ctx)

	bucket, ok := rec.Get("s3_bucketname")
	require.True(t, ok)
	assert.Equal(t, "hpcmaker-alice-test01-"+testutil.FixedDigest, bucket)

	_, ok = rec.Get("terraform_version")
	assert.False(t, ok, "clusters are not built with terraform")

	_, err := rec.Marshal()
	require.NoError(t, err)
}

func TestBuildVars_FieldOrder(t *testing.T) {
	t.Parallel()

	rec := BuildVars(populatedContext(t, testutil.Jumphost()))

	index := map[string]int{}
	for i, f := range rec.Fields {
		if f.Key != "" {
			index[f.Key] = i
		}
	}
	order := []string{"ansible_version", "sns_arn", "jumphost_iam_instance_policy", "aws_ami", "ebs_optimized", "az", "terraform_version", "stage_dir"}
	for i := 1; i < len(order); i++ {
		assert.Less(t, index[order[i-1]], index[order[i]], "%s before %s", order[i-1], order[i])
	}
}

func TestDataFor(t *testing.T) {
	t.Parallel()

	ctx := populatedContext(t, testutil.Jumphost())
	ctx.Request.InstanceType = "t3.small"

	tf := TFVarsDataFor(ctx)
	assert.Equal(t, "t3.small", tf.InstanceType)
	assert.Equal(t, "subnet-0abc", tf.SubnetID)
	assert.Equal(t, "sg-1", tf.SecurityGroupID)
	assert.Equal(t, ctx.State.Serial.String(), tf.Tags["Serial"])

	p := PolicyDataFor(ctx)
	assert.Equal(t, "123456789012", p.Account)
	assert.Empty(t, p.Bucket)

	n := NoticeDataFor(ctx)
	assert.Equal(t, "2019-04-20", n.DateStamp)
	assert.Equal(t, "alice-test01", n.Name)
}
