package handlers

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/driver"
	"github.com/imamik/hpcmaker/internal/logging"
	"github.com/imamik/hpcmaker/internal/metrics"
	"github.com/imamik/hpcmaker/internal/notify"
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/platform/s3"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/registry"
	"github.com/imamik/hpcmaker/internal/render"
	"github.com/imamik/hpcmaker/internal/util/prerequisites"
)

// Globals are the persistent flags of the root command.
type Globals struct {
	ConfigPath string
	StateDir   string
}

// natsNotifier is the part of *notify.NATS a session holds.
type natsNotifier interface {
	provisioning.Notifier
	io.Closer
}

// processRunner runs interactive one-off commands.
type processRunner interface {
	Run(ctx context.Context, dir string, argv ...string) error
}

// Factory function variables - can be replaced in tests.
var (
	newLogger = logging.New

	newCloud = func(ctx context.Context, settings *config.Settings, e config.Entity, timeouts *config.Timeouts, log logr.Logger) (awscloud.InfrastructureManager, provisioning.BucketManager, error) {
		cfg, err := awscloud.LoadAWSConfig(ctx, awscloud.Options{
			Region:          e.Region(),
			Profile:         settings.ProfileFor(e.Owner),
			AccessKeyID:     settings.AWS.AccessKeyID,
			SecretAccessKey: settings.AWS.SecretAccessKey,
			SessionToken:    settings.AWS.SessionToken,
		})
		if err != nil {
			return nil, nil, err
		}
		return awscloud.NewFromConfig(cfg, timeouts, log), s3.NewClient(cfg, "", timeouts, log), nil
	}

	newAnsible = func(settings *config.Settings, timeouts *config.Timeouts, verbosity int, log logr.Logger) provisioning.PlaybookRunner {
		a := driver.NewAnsible(settings.Tools.AnsiblePlaybook, settings.PlaybookDir, timeouts.Playbook, log)
		a.Verbosity = verbosity
		return a
	}

	newTerraform = func(settings *config.Settings, timeouts *config.Timeouts, log logr.Logger) provisioning.TerraformRunner {
		return driver.NewTerraform(settings.Tools.Terraform, timeouts.Terraform, log)
	}

	dialNATS = func(url, prefix string, log logr.Logger) (natsNotifier, error) {
		return notify.DialNATS(url, prefix, log)
	}

	newProcess = func(log logr.Logger) processRunner {
		return driver.NewProcess(log)
	}

	pclusterStatus = driver.PclusterStatus
	checkTools     = prerequisites.Check
	newRunID       = uuid.NewString
	now            = time.Now

	out io.Writer = os.Stdout
)

// loadSettings reads the settings file and applies the global overrides.
func loadSettings(g Globals) (*config.Settings, error) {
	settings, err := config.LoadSettings(g.ConfigPath)
	if err != nil {
		return nil, err
	}
	if g.StateDir != "" {
		settings.StateDir = g.StateDir
	}
	return settings, nil
}

// session owns the collaborators of one create or destroy run.
type session struct {
	settings *config.Settings
	timeouts *config.Timeouts
	log      logr.Logger
	registry *registry.Registry
	unlock   func() error
	runID    string
	metrics  *metrics.Recorder
	nats     natsNotifier
}

// sessionOptions select what a session wires beyond the defaults.
type sessionOptions struct {
	Debug     bool
	Verbosity int

	// Settings overrides from flags. Empty or negative values keep the
	// settings file.
	TurbotAccount string
	ConfirmDelay  time.Duration
}

// openSession loads settings, takes the change lock for e and connects
// the cloud and notice collaborators. The caller must close the session.
func openSession(ctx context.Context, g Globals, e config.Entity, opts sessionOptions) (*session, provisioning.Deps, error) {
	settings, err := loadSettings(g)
	if err != nil {
		return nil, provisioning.Deps{}, err
	}
	if opts.TurbotAccount != "" {
		settings.AWS.TurbotAccount = opts.TurbotAccount
	}
	if opts.ConfirmDelay >= 0 {
		settings.ConfirmDelay = opts.ConfirmDelay
	}

	s := &session{
		settings: settings,
		timeouts: config.LoadTimeouts(),
		log:      newLogger(opts.Debug),
		runID:    newRunID(),
		metrics:  metrics.NewRecorder(),
	}

	s.registry, err = registry.Open(settings.StateDir, s.timeouts.Lock)
	if err != nil {
		return nil, provisioning.Deps{}, err
	}
	if s.unlock, err = s.registry.Lock(e, s.runID); err != nil {
		_ = s.Close()
		return nil, provisioning.Deps{}, err
	}

	cloud, buckets, err := newCloud(ctx, settings, e, s.timeouts, s.log)
	if err != nil {
		_ = s.Close()
		return nil, provisioning.Deps{}, err
	}

	notifiers := notify.Multi{&notify.SNS{Topics: cloud}}
	if settings.Notify.NATSURL != "" {
		n, err := dialNATS(settings.Notify.NATSURL, settings.Notify.SubjectPrefix, s.log)
		if err != nil {
			// Notices are best effort; the SNS topic still carries them.
			s.log.Info("NATS notices disabled", "error", err.Error())
		} else {
			s.nats = n
			notifiers = append(notifiers, n)
		}
	}

	verbosity := opts.Verbosity
	if opts.Debug && verbosity < 3 {
		verbosity = 3
	}

	deps := provisioning.Deps{
		Cloud:     cloud,
		Buckets:   buckets,
		Registry:  s.registry,
		Templates: render.NewFromDir(settings.TemplatesDir),
		Ansible:   newAnsible(settings, s.timeouts, verbosity, s.log),
		Terraform: newTerraform(settings, s.timeouts, s.log),
		Notifier:  notifiers,
		Metrics:   s.metrics,
	}
	return s, deps, nil
}

// newContext builds the provisioning context for one run.
func (s *session) newContext(ctx context.Context, e config.Entity, req *provisioning.Request, deps provisioning.Deps, argv []string) *provisioning.Context {
	pCtx := provisioning.NewContext(ctx, s.settings, e, req, deps, s.log)
	pCtx.RunID = s.runID
	pCtx.Argv = argv
	pCtx.Timeouts = s.timeouts
	pCtx.Tools = checkTools
	pCtx.Now = now
	return pCtx
}

// finish records the run outcome and writes the metrics textfile.
func (s *session) finish(kind config.Kind, command string, runErr error) {
	s.metrics.ObserveRun(string(kind), command, now(), runErr)
	if err := s.metrics.WriteTextfile(s.settings.MetricsFile); err != nil {
		s.log.Info("failed to write metrics textfile", "path", s.settings.MetricsFile, "error", err.Error())
	}
}

// Close releases the entity lock and the NATS connection.
func (s *session) Close() error {
	var errs []error
	if s.nats != nil {
		errs = append(errs, s.nats.Close())
	}
	if s.unlock != nil {
		errs = append(errs, s.unlock())
	}
	if s.registry != nil {
		errs = append(errs, s.registry.Close())
	}
	return errors.Join(errs...)
}
