package render

// PolicyData feeds instance_policy.json.tmpl.
type PolicyData struct {
	Kind       string
	Account    string
	Region     string
	Tier       string
	Owner      string
	Serial     string
	ResourceID string
	Bucket     string // cluster data bucket, empty for jumphosts
	TopicARN   string
}

// TFVarsData feeds terraform.auto.tfvars.json.tmpl.
type TFVarsData struct {
	Name            string
	Region          string
	Zone            string
	AMI             string
	InstanceType    string
	KeyName         string
	SubnetID        string
	SecurityGroupID string
	Profile         string
	RootVolumeSize  int
	VolumeType      string
	EBSOptimized    bool
	Tags            map[string]string
}

// NoticeData feeds notice.txt.tmpl.
type NoticeData struct {
	Kind      string
	Name      string
	Serial    string
	Region    string
	Zone      string
	Owner     string
	DateStamp string
	TimeStamp string
}
