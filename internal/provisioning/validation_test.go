package provisioning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/util/prerequisites"
)

func validIdentifiers() Identifiers {
	return Identifiers{
		Kind:         config.KindJumphost,
		Owner:        "alice",
		Name:         "test01",
		Email:        "alice@example.org",
		Tier:         "dev",
		ProjectID:    "p-1",
		RequireEmail: true,
	}
}

func errorFields(results []ValidationError) []string {
	var fields []string
	for _, r := range results {
		if r.IsError() {
			fields = append(fields, r.Field)
		}
	}
	return fields
}

func TestValidateIdentifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Identifiers)
		want   []string
	}{
		{name: "valid", mutate: func(*Identifiers) {}},
		{name: "uppercase name", mutate: func(i *Identifiers) { i.Name = "Test01" }, want: []string{"instance_name"}},
		{name: "uppercase owner", mutate: func(i *Identifiers) { i.Owner = "Alice" }, want: []string{"instance_owner"}},
		{name: "path separator", mutate: func(i *Identifiers) { i.Name = "../etc" }, want: []string{"instance_name"}},
		{name: "empty owner", mutate: func(i *Identifiers) { i.Owner = "" }, want: []string{"instance_owner"}},
		{name: "missing email", mutate: func(i *Identifiers) { i.Email = "" }, want: []string{"instance_owner_email"}},
		{name: "email without at", mutate: func(i *Identifiers) { i.Email = "alice" }, want: []string{"instance_owner_email"}},
		{name: "email optional for teardown", mutate: func(i *Identifiers) { i.Email = ""; i.RequireEmail = false }},
		{name: "bad tier", mutate: func(i *Identifiers) { i.Tier = "qa" }, want: []string{"prod_level"}},
		{name: "bad department", mutate: func(i *Identifiers) { i.Department = "finance" }, want: []string{"instance_owner_department"}},
		{name: "known department", mutate: func(i *Identifiers) { i.Department = "research" }},
		{name: "bad kind", mutate: func(i *Identifiers) { i.Kind = "server" }, want: []string{"kind"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ids := validIdentifiers()
			tt.mutate(&ids)
			assert.Equal(t, tt.want, errorFields(ValidateIdentifiers(ids)))
		})
	}
}

func TestValidateIdentifiers_MissingProjectIsWarning(t *testing.T) {
	t.Parallel()
	ids := validIdentifiers()
	ids.ProjectID = ""

	results := ValidateIdentifiers(ids)
	require.Len(t, results, 1)
	assert.False(t, results[0].IsError())

	observer := NewMockObserver()
	assert.NoError(t, CheckValidation(observer, results))
	assert.Len(t, observer.EventsOfType(EventValidationWarning), 1)
}

func TestCheckValidation_JoinsErrors(t *testing.T) {
	t.Parallel()
	ids := validIdentifiers()
	ids.Name = "Bad/Name"

	observer := NewMockObserver()
	err := CheckValidation(observer, ValidateIdentifiers(ids))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "uppercase")
	assert.Contains(t, err.Error(), "path separator")
	assert.Len(t, observer.EventsOfType(EventValidationError), 2)
	assert.Empty(t, observer.EventsOfType(EventValidationWarning))
}

func TestRegionForZone(t *testing.T) {
	t.Parallel()

	for az, region := range map[string]string{
		"us-east-1a":      "us-east-1",
		"eu-central-1b":   "eu-central-1",
		"ap-southeast-2c": "ap-southeast-2",
		"us-gov-west-1a":  "us-gov-west-1",
	} {
		got, err := RegionForZone(az)
		require.NoError(t, err, az)
		assert.Equal(t, region, got)
	}

	for _, az := range []string{"", "a", "us-east-1", "us-east-1A", "useast1a", "us-east-a"} {
		_, err := RegionForZone(az)
		assert.ErrorIs(t, err, ErrInvalidInput, az)
		assert.ErrorIs(t, err, awscloud.ErrInvalidZone, az)
	}
}

type zoneFunc func(ctx context.Context, zone string) error

func (f zoneFunc) ZoneAvailable(ctx context.Context, zone string) error { return f(ctx, zone) }

func TestValidateZone(t *testing.T) {
	t.Parallel()
	mock := awscloud.NewMockClient("us-east-1")

	assert.NoError(t, ValidateZone(context.Background(), mock, "us-east-1a"))

	err := ValidateZone(context.Background(), mock, "us-west-2a")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "invalid availability zone: us-west-2a")

	unreachable := zoneFunc(func(context.Context, string) error { return errors.New("dial tcp: timeout") })
	err = ValidateZone(context.Background(), unreachable, "us-east-1a")
	assert.ErrorIs(t, err, awscloud.ErrInvalidZone)
	assert.Contains(t, err.Error(), "invalid availability zone: us-east-1a")
}

func testPaths(t *testing.T) config.Paths {
	t.Helper()
	return config.NewPaths(t.TempDir(), config.Entity{
		Kind: config.KindJumphost, Owner: "alice", Name: "test01", Tier: "dev", Zone: "us-east-1a",
	})
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o600))
}

func TestCheckCreatePreconditions(t *testing.T) {
	t.Parallel()
	paths := testPaths(t)

	require.NoError(t, CheckCreatePreconditions(paths))

	touch(t, paths.VarsFile())
	err := CheckCreatePreconditions(paths)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreconditionMissing)
	assert.Contains(t, err.Error(), "record already exists")
	assert.Contains(t, err.Error(), "$ rm "+paths.VarsFile())
}

func TestCheckTeardownPreconditions(t *testing.T) {
	t.Parallel()
	paths := testPaths(t)

	err := CheckTeardownPreconditions(paths)
	assert.ErrorIs(t, err, ErrPreconditionMissing)
	assert.Contains(t, err.Error(), "serial record not found")

	touch(t, paths.SerialFile())
	err = CheckTeardownPreconditions(paths)
	assert.ErrorIs(t, err, ErrPreconditionMissing)
	assert.Contains(t, err.Error(), "vars file not found")

	touch(t, paths.VarsFile())
	assert.NoError(t, CheckTeardownPreconditions(paths))
}

func stubTools(found map[string]string) ToolChecker {
	return func(_ context.Context, tools []prerequisites.Tool) *prerequisites.CheckResults {
		results := &prerequisites.CheckResults{}
		for _, tool := range tools {
			v, ok := found[tool.Name]
			results.Results = append(results.Results, prerequisites.CheckResult{Tool: tool, Found: ok, Version: v})
			if !ok {
				results.Missing = append(results.Missing, tool)
			}
		}
		return results
	}
}

func newValidationContext(t *testing.T) *Context {
	t.Helper()
	settings := config.DefaultSettings()
	settings.StateDir = t.TempDir()
	entity := config.Entity{Kind: config.KindJumphost, Owner: "alice", Name: "test01", Tier: "dev", Zone: "us-east-1a"}

	ctx := NewContext(context.Background(), settings, entity,
		&Request{Email: "alice@example.org", ProjectID: "p-1"},
		Deps{Cloud: awscloud.NewMockClient("us-east-1")},
		logr.Discard())
	ctx.Tools = stubTools(map[string]string{"ansible": "2.16.3", "ansible-playbook": "2.16.3", "terraform": "v1.9.5"})
	return ctx
}

func TestValidationPhase_Success(t *testing.T) {
	t.Parallel()
	ctx := newValidationContext(t)

	require.NoError(t, NewValidationPhase().Provision(ctx))
	assert.Equal(t, "v1.9.5", ctx.State.ToolVersions["terraform"])
	assert.Equal(t, "2.16.3", ctx.State.ToolVersions["ansible"])
}

func TestValidationPhase_MissingTool(t *testing.T) {
	t.Parallel()
	ctx := newValidationContext(t)
	ctx.Tools = stubTools(map[string]string{"ansible": "2.16.3", "ansible-playbook": "2.16.3"})

	err := NewValidationPhase().Provision(ctx)
	assert.ErrorIs(t, err, ErrPreconditionMissing)
	assert.Contains(t, err.Error(), "terraform is missing")
}

func TestValidationPhase_ExistingRecord(t *testing.T) {
	t.Parallel()
	ctx := newValidationContext(t)
	touch(t, ctx.Paths.VarsFile())

	err := NewValidationPhase().Provision(ctx)
	assert.ErrorIs(t, err, ErrPreconditionMissing)
}

func TestValidateResourceNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		entity config.Entity
		want   []string
	}{
		{
			name:   "short",
			entity: config.Entity{Kind: config.KindCluster, Owner: "alice", Name: "test01", Zone: "us-east-1a"},
		},
		{
			name:   "cluster role at the limit",
			entity: config.Entity{Kind: config.KindCluster, Owner: "alice", Name: strings.Repeat("n", 25), Zone: "us-east-1a"},
		},
		{
			name:   "cluster role one over",
			entity: config.Entity{Kind: config.KindCluster, Owner: "alice", Name: strings.Repeat("n", 26), Zone: "us-east-1a"},
			want:   []string{"IAM role"},
		},
		{
			name:   "jumphost role at the limit",
			entity: config.Entity{Kind: config.KindJumphost, Owner: "alice", Name: strings.Repeat("n", 24), Zone: "us-east-1a"},
		},
		{
			name:   "jumphost role one over",
			entity: config.Entity{Kind: config.KindJumphost, Owner: "alice", Name: strings.Repeat("n", 25), Zone: "us-east-1a"},
			want:   []string{"IAM role"},
		},
		{
			name:   "long pipeline name",
			entity: config.Entity{Kind: config.KindCluster, Owner: "alice", Name: "genomics-pipeline-nightly-batch", Zone: "us-east-1a"},
			want:   []string{"IAM role"},
		},
		{
			name:   "bucket cut",
			entity: config.Entity{Kind: config.KindCluster, Owner: "alice", Name: strings.Repeat("n", 40), Zone: "us-east-1a"},
			want:   []string{"IAM role", "S3 bucket"},
		},
		{
			name:   "jumphost has no bucket",
			entity: config.Entity{Kind: config.KindJumphost, Owner: "alice", Name: strings.Repeat("n", 40), Zone: "us-east-1a"},
			want:   []string{"IAM role"},
		},
		{
			name:   "empty name left to identifier checks",
			entity: config.Entity{Kind: config.KindCluster, Owner: "alice", Zone: "us-east-1a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ValidateResourceNames(tt.entity)
			require.Len(t, got, len(tt.want))
			for i, ve := range got {
				assert.True(t, ve.IsError())
				assert.Equal(t, "instance_name", ve.Field)
				assert.True(t, strings.HasPrefix(ve.Message, tt.want[i]), ve.Message)
			}
		})
	}
}

func TestValidationPhase_NameTooLong(t *testing.T) {
	t.Parallel()
	ctx := newValidationContext(t)
	ctx.Entity.Kind = config.KindCluster
	ctx.Entity.Name = "genomics-pipeline-nightly-batch"
	mock := awscloud.NewMockClient("us-east-1")
	ctx.Cloud = mock

	err := NewValidationPhase().Provision(ctx)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "shorten the name or owner by 6")
	assert.Zero(t, mock.CallCount("ZoneAvailable"))
}

func TestValidationPhase_InvalidZone(t *testing.T) {
	t.Parallel()
	ctx := newValidationContext(t)
	ctx.Entity.Zone = "us-east-1q"
	mock := awscloud.NewMockClient("us-east-1")
	mock.ZoneAvailableFunc = func(_ context.Context, zone string) error {
		return errors.Join(awscloud.ErrInvalidZone, errors.New(zone))
	}
	ctx.Cloud = mock

	err := NewValidationPhase().Provision(ctx)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
