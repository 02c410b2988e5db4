package teardown

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/orchestration"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/registry"
	"github.com/imamik/hpcmaker/internal/render"
	testutil "github.com/imamik/hpcmaker/internal/testing"
)

type staticConfirmer struct {
	answer bool
	asked  []string
}

func (s *staticConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	s.asked = append(s.asked, prompt)
	return s.answer, nil
}

// created builds e through the create pipeline and returns the fixture.
func created(e config.Entity) *testutil.Fixture {
	f := testutil.NewFixture(GinkgoT(), e)
	deps := f.Deps()
	deps.Templates = render.NewFromDir("")
	ctx := f.ContextWith(context.Background(), &provisioning.Request{Email: "alice@example.com"}, deps)
	Expect(orchestration.NewReconciler().Reconcile(ctx)).To(Succeed())
	return f
}

func teardownContext(parent context.Context, f *testutil.Fixture) *provisioning.Context {
	return f.ContextWith(parent, &provisioning.Request{}, f.Deps())
}

// failDelete makes the delete playbook fail while every other playbook
// still succeeds.
func failDelete(f *testutil.Fixture, playbook string) {
	f.Ansible.ExpectedCalls = nil
	f.Ansible.On("RunPlaybook", mock.Anything, playbook, mock.Anything).
		Return(&provisioning.ToolError{Tool: "ansible-playbook " + playbook, ExitCode: 2, Err: errors.New("exit status 2")})
	f.Ansible.On("RunPlaybook", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

var _ = Describe("Coordinator", func() {
	var opts Options

	BeforeEach(func() {
		opts = Options{DeleteDependents: true}
	})

	Context("with an existing jumphost", func() {
		var f *testutil.Fixture

		BeforeEach(func() {
			f = created(testutil.Jumphost())
		})

		It("walks every state and removes the records", func() {
			res, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())

			Expect(res.State).To(Equal(StateDone))
			Expect(res.History).To(Equal(order))
			Expect(res.Warnings).To(BeEmpty())

			Expect(f.Paths().VarsFile()).NotTo(BeAnExistingFile())
			Expect(f.Paths().SerialFile()).NotTo(BeAnExistingFile())
			Expect(f.Paths().WorkDir()).NotTo(BeADirectory())
			_, rerr := f.Registry.Resolve(f.Entity)
			Expect(rerr).To(MatchError(registry.ErrNotFound))

			Expect(res.RebuildCommand).To(HavePrefix("hpcmaker jumphost create"))
		})

		It("runs the delete playbook with the identifiers and serial", func() {
			_, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())

			Expect(f.Ansible.Playbooks()).To(Equal([]string{"create_jumphost_templates.yml", "delete_jumphost.yml"}))
			Expect(f.Ansible.ExtraVars(1)).To(Equal(map[string]string{
				"instance_name":          "alice-test01",
				"instance_serial_number": "alice-test01-" + testutil.FixedDigest,
			}))
		})

		It("releases dependents but keeps the shared security group", func() {
			_, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())

			Expect(f.Cloud.Roles).To(BeEmpty())
			Expect(f.Cloud.Profiles).To(BeEmpty())
			Expect(f.Cloud.KeyPairs).To(BeEmpty())
			Expect(f.Cloud.Topics).To(BeEmpty())
			Expect(f.Cloud.SecurityGroups).To(HaveLen(1))
		})

		It("keeps dependents when asked to", func() {
			opts.DeleteDependents = false
			_, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())

			Expect(f.Cloud.Roles).To(HaveLen(1))
			Expect(f.Cloud.Topics).To(HaveLen(1))
			Expect(f.Paths().VarsFile()).NotTo(BeAnExistingFile())
		})

		It("announces the deletion before the topic is released", func() {
			_, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())

			notices := f.Notifier.Notices()
			Expect(notices).To(HaveLen(2))
			Expect(notices[1].Event).To(Equal(provisioning.EventDestroyed))
			Expect(notices[1].TopicARN).To(ContainSubstring("ParallelClusterMaker_Jumphost_SNS_Alerts_alice-test01-"))
			Expect(notices[1].Subject).To(Equal("[ParallelClusterMaker/JumphostMaker] Pcluster Jumphost Instance Deletion Notice"))
		})

		It("keeps the records when the destroy fails", func() {
			failDelete(f, "delete_jumphost.yml")

			res, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).To(MatchError(provisioning.ErrExternalTool))
			Expect(res.State).To(Equal(StateExecuteDestroy))
			Expect(res.History).NotTo(ContainElement(StateAbort))

			Expect(f.Paths().VarsFile()).To(BeAnExistingFile())
			Expect(f.Paths().SerialFile()).To(BeAnExistingFile())
			Expect(f.Cloud.Roles).To(HaveLen(1))
		})

		It("aborts when cancelled during the confirm delay", func() {
			f.Settings.ConfirmDelay = time.Hour
			parent, cancel := context.WithCancel(context.Background())
			cancel()

			res, err := New(opts).Run(teardownContext(parent, f))
			Expect(err).To(MatchError(provisioning.ErrAborted))
			Expect(res.State).To(Equal(StateAbort))
			Expect(res.History).To(Equal([]State{
				StateResolveName, StateValidateZone, StateLocateRecords, StateConfirm, StateAbort,
			}))

			Expect(f.Ansible.Playbooks()).To(Equal([]string{"create_jumphost_templates.yml"}))
			Expect(f.Paths().VarsFile()).To(BeAnExistingFile())
			Expect(f.Paths().SerialFile()).To(BeAnExistingFile())
		})

		It("aborts when the operator declines", func() {
			confirmer := &staticConfirmer{answer: false}
			opts.Interactive = true
			opts.Confirmer = confirmer

			res, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).To(MatchError(provisioning.ErrAborted))
			Expect(res.State).To(Equal(StateAbort))
			Expect(confirmer.asked).To(HaveLen(1))
			Expect(confirmer.asked[0]).To(ContainSubstring("alice-test01"))
			Expect(f.Paths().SerialFile()).To(BeAnExistingFile())
		})

		It("proceeds when the operator agrees", func() {
			opts.Interactive = true
			opts.Confirmer = &staticConfirmer{answer: true}

			res, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(StateDone))
		})

		It("warns but finishes when a dependent cannot be released", func() {
			f.Cloud.DeleteRoleFunc = func(context.Context, string, string) error {
				return errors.New("AccessDenied")
			}

			res, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(StateDone))
			Expect(res.Warnings).To(ContainElement(ContainSubstring("AccessDenied")))
			Expect(f.Paths().SerialFile()).NotTo(BeAnExistingFile())
		})

		It("aborts on an unavailable zone", func() {
			f.Cloud.ZoneAvailableFunc = func(_ context.Context, zone string) error {
				return errors.New("dial tcp: no such host")
			}

			res, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).To(MatchError(provisioning.ErrInvalidInput))
			Expect(err.Error()).To(ContainSubstring("invalid availability zone"))
			Expect(res.History).To(Equal([]State{StateResolveName, StateValidateZone, StateAbort}))
			Expect(f.Paths().SerialFile()).To(BeAnExistingFile())
		})
	})

	Context("with an existing cluster", func() {
		var f *testutil.Fixture

		BeforeEach(func() {
			f = created(testutil.Cluster())
			opts.DeleteEFS = true
		})

		It("passes the storage flags to the delete playbook", func() {
			_, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())

			Expect(f.Ansible.Playbooks()).To(HaveLen(3))
			Expect(f.Ansible.Playbooks()[2]).To(Equal("delete_cluster.yml"))
			Expect(f.Ansible.ExtraVars(2)).To(Equal(map[string]string{
				"cluster_name":               "alice-test01",
				"cluster_birth_name":         "test01",
				"cluster_serial_number":      "alice-test01." + testutil.FixedDigest,
				"delete_s3_bucketname":       "false",
				"delete_efs":                 "true",
				"delete_fsx":                 "false",
				"ansible_python_interpreter": "/usr/bin/python3",
			}))
			Expect(f.Buckets.Buckets).To(BeEmpty())
		})

		It("reports a cluster pcluster does not know as a warning", func() {
			opts.StatusCheck = func(context.Context, string, string) error {
				return errors.New("exit status 1")
			}

			res, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Warnings).To(ContainElement(ContainSubstring("pcluster does not report alice-test01")))
		})

		It("notes a missing pcluster", func() {
			delete(f.ToolVersions, "pcluster")
			opts.StatusCheck = func(context.Context, string, string) error { return nil }

			res, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Warnings).To(ContainElement(ContainSubstring("pcluster not installed")))
		})
	})

	Context("without records", func() {
		It("aborts and touches nothing", func() {
			f := testutil.NewFixture(GinkgoT(), testutil.Jumphost())

			res, err := New(opts).Run(teardownContext(context.Background(), f))
			Expect(err).To(MatchError(provisioning.ErrPreconditionMissing))
			Expect(res.State).To(Equal(StateAbort))
			Expect(f.Ansible.Playbooks()).To(BeEmpty())
			Expect(f.Cloud.CallCount("DeleteRole")).To(BeZero())
		})
	})

	Describe("State", func() {
		It("advances in order", func() {
			Expect(StateResolveName.next()).To(Equal(StateValidateZone))
			Expect(StateCleanupRecords.next()).To(Equal(StateDone))
		})

		It("can abort only before the destroy", func() {
			Expect(StateConfirm.abortable()).To(BeTrue())
			Expect(StateExecuteDestroy.abortable()).To(BeFalse())
			Expect(StateCleanupRecords.abortable()).To(BeFalse())
		})
	})
})
