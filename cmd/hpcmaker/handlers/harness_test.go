package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/registry"
	"github.com/imamik/hpcmaker/internal/teardown"
	testutil "github.com/imamik/hpcmaker/internal/testing"
	"github.com/imamik/hpcmaker/internal/util/prerequisites"
)

// harness wires every handler factory to in-memory fakes under a temp
// state tree.
type harness struct {
	g           Globals
	stateDir    string
	metrics     string
	cloud       *awscloud.MockClient
	buckets     *testutil.MemoryBuckets
	ansible     *testutil.MockPlaybookRunner
	terraform   *testutil.MockTerraform
	process     *recordingProcess
	out         *bytes.Buffer
	missing     map[string]bool
	statusCalls []string
	statusErr   error
}

func swap[T any](t *testing.T, p *T, v T) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	h := &harness{
		stateDir:  filepath.Join(dir, "state"),
		metrics:   filepath.Join(dir, "hpcmaker.prom"),
		cloud:     awscloud.NewMockClient("us-east-1"),
		buckets:   testutil.NewMemoryBuckets(),
		ansible:   testutil.NewMockPlaybookRunner(),
		terraform: testutil.NewMockTerraform(),
		process:   &recordingProcess{},
		out:       &bytes.Buffer{},
		missing:   map[string]bool{},
	}

	cfg := filepath.Join(dir, "hpcmaker.yaml")
	testutil.WriteFile(t, cfg, fmt.Sprintf("state_dir: %s\nmetrics_file: %s\nconfirm_delay: 1ms\n", h.stateDir, h.metrics))
	h.g = Globals{ConfigPath: cfg}

	swap(t, &newLogger, func(bool) logr.Logger { return logr.Discard() })
	swap(t, &newCloud, func(context.Context, *config.Settings, config.Entity, *config.Timeouts, logr.Logger) (awscloud.InfrastructureManager, provisioning.BucketManager, error) {
		return h.cloud, h.buckets, nil
	})
	swap(t, &newAnsible, func(*config.Settings, *config.Timeouts, int, logr.Logger) provisioning.PlaybookRunner {
		return h.ansible
	})
	swap(t, &newTerraform, func(*config.Settings, *config.Timeouts, logr.Logger) provisioning.TerraformRunner {
		return h.terraform
	})
	swap(t, &newProcess, func(logr.Logger) processRunner { return h.process })
	swap(t, &newConfirmer, func() teardown.Confirmer { return nil })
	swap(t, &pclusterStatus, func(_ context.Context, _, region, name string, _ time.Duration) error {
		h.statusCalls = append(h.statusCalls, region+"/"+name)
		return h.statusErr
	})
	swap(t, &checkTools, h.checkTools)
	swap(t, &newRunID, func() string { return "run-1" })
	swap(t, &now, func() time.Time { return testutil.FixedTime })
	swap[io.Writer](t, &out, h.out)

	return h
}

func (h *harness) checkTools(_ context.Context, tools []prerequisites.Tool) *prerequisites.CheckResults {
	res := &prerequisites.CheckResults{}
	for _, tool := range tools {
		found := !h.missing[tool.Name]
		r := prerequisites.CheckResult{Tool: tool, Found: found}
		if found {
			r.Path = "/usr/bin/" + tool.Binary
			r.Version = "1.0.0"
		} else if tool.Required {
			res.Missing = append(res.Missing, tool)
		}
		res.Results = append(res.Results, r)
	}
	return res
}

func (h *harness) jumphostOptions() CreateOptions {
	return CreateOptions{
		Kind:         config.KindJumphost,
		Zone:         "us-east-1a",
		Name:         "test01",
		Owner:        "alice",
		Email:        "alice@example.com",
		Tier:         "dev",
		Department:   "hpc",
		ProjectID:    "UNDEFINED",
		ConfirmDelay: -1,
		Argv:         []string{"hpcmaker", "jumphost", "create", "-A", "us-east-1a", "-N", "test01", "-O", "alice", "-E", "alice@example.com"},
	}
}

func (h *harness) clusterOptions() CreateOptions {
	opts := h.jumphostOptions()
	opts.Kind = config.KindCluster
	opts.Argv[1] = "cluster"
	return opts
}

func (h *harness) destroyOptions(kind config.Kind) DestroyOptions {
	return DestroyOptions{
		Kind:             kind,
		Zone:             "us-east-1a",
		Name:             "test01",
		Owner:            "alice",
		Tier:             "dev",
		DeleteDependents: true,
		ConfirmDelay:     0,
	}
}

func (h *harness) entity(kind config.Kind) config.Entity {
	return config.Entity{Kind: kind, Owner: "alice", Name: "test01", Tier: "dev", Zone: "us-east-1a"}
}

func (h *harness) paths(kind config.Kind) config.Paths {
	return config.NewPaths(h.stateDir, h.entity(kind))
}

func (h *harness) serial() registry.Serial {
	return registry.NewSerial("alice-test01", testutil.FixedTime)
}

func (h *harness) output() string {
	return h.out.String()
}

// recordingProcess records the commands it is asked to run.
type recordingProcess struct {
	mu    sync.Mutex
	dirs  []string
	calls [][]string
	err   error
}

func (p *recordingProcess) Run(_ context.Context, dir string, argv ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirs = append(p.dirs, dir)
	p.calls = append(p.calls, argv)
	return p.err
}

func (p *recordingProcess) commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		out = append(out, strings.Join(c, " "))
	}
	return out
}
