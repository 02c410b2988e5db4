package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kballard/go-shellquote"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/registry"
	"github.com/imamik/hpcmaker/internal/render"
	"github.com/imamik/hpcmaker/internal/util/naming"
)

// publicIPKey is written into the jumphost vars file by the build playbook.
const publicIPKey = "jumphost_public_ip"

// AccessOptions are the parsed access flags.
type AccessOptions struct {
	Kind  config.Kind
	Name  string
	Owner string
	Tier  string
	Host  string // jumphosts only
}

// Access handles the access command.
//
// Clusters run the access script the build left in the working directory.
// Jumphosts are reached with ssh and the private key of the entity's key
// pair, which must parse and match the fingerprint recorded at create.
func Access(ctx context.Context, g Globals, opts AccessOptions) error {
	settings, err := loadSettings(g)
	if err != nil {
		return err
	}

	e := config.Entity{Kind: opts.Kind, Owner: opts.Owner, Name: opts.Name, Tier: opts.Tier}
	e, serial, err := lookupEntity(settings, e)
	if err != nil {
		return err
	}
	paths := settings.Paths(e)

	var argv []string
	switch e.Kind {
	case config.KindCluster:
		script := filepath.Join(paths.WorkDir(), naming.AccessScript(e.FullName()))
		if err := requireFile(script, "cluster access script"); err != nil {
			return err
		}
		argv = []string{settings.Tools.Python, script}
	default:
		host, err := jumphostAddress(paths, opts.Host)
		if err != nil {
			return err
		}
		pem := provisioning.ResourceNames(e, paths, serial, "").PEMPath
		fp, err := checkPrivateKey(paths, pem)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, dimStyle.Render("  key "+fp))
		argv = []string{settings.Tools.SSH, "-i", pem, settings.Instance.User + "@" + host}
	}

	fmt.Fprintln(out, dimStyle.Render("  "+shellquote.Join(argv...)))
	return newProcess(newLogger(false)).Run(ctx, paths.WorkDir(), argv...)
}

// lookupEntity fills in the zone of e from the registry and resolves its
// serial.
func lookupEntity(settings *config.Settings, e config.Entity) (config.Entity, registry.Serial, error) {
	reg := registry.OpenReadOnly(settings.StateDir, config.LoadTimeouts().Lock)
	entry, err := reg.Lookup(e)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return e, registry.Serial{}, fmt.Errorf("%w: no active %s %s in tier %s", provisioning.ErrPreconditionMissing, e.Kind, e.FullName(), e.Tier)
		}
		return e, registry.Serial{}, err
	}
	e.Zone = entry.Zone

	serial, err := reg.Resolve(e)
	if err != nil {
		return e, registry.Serial{}, fmt.Errorf("%w: %w", provisioning.ErrPreconditionMissing, err)
	}
	return e, serial, nil
}

func jumphostAddress(paths config.Paths, host string) (string, error) {
	if host != "" {
		return host, nil
	}
	vars, err := render.ReadRecord(paths.VarsFile())
	if err != nil {
		return "", fmt.Errorf("%w: %w", provisioning.ErrPreconditionMissing, err)
	}
	if ip, ok := vars[publicIPKey]; ok && ip != nil && fmt.Sprint(ip) != "" {
		return fmt.Sprint(ip), nil
	}
	return "", fmt.Errorf("%w: %s has no %s; pass --host", provisioning.ErrPreconditionMissing, paths.VarsFile(), publicIPKey)
}

// checkPrivateKey parses the key at pem and returns its fingerprint. When
// the vars file recorded a fingerprint at create the two must agree.
func checkPrivateKey(paths config.Paths, pem string) (string, error) {
	fp, err := awscloud.PrivateKeyFingerprint(pem)
	if err != nil {
		return "", fmt.Errorf("%w: private key: %w", provisioning.ErrPreconditionMissing, err)
	}

	vars, err := render.ReadRecord(paths.VarsFile())
	if err != nil {
		return fp, nil
	}
	if want, ok := vars[render.KeyFingerprintKey].(string); ok && want != "" && want != fp {
		return "", fmt.Errorf("%w: private key %s has fingerprint %s, the key pair was created with %s",
			provisioning.ErrPreconditionMissing, pem, fp, want)
	}
	return fp, nil
}

func requireFile(path, what string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s %s: %w", provisioning.ErrPreconditionMissing, what, path, err)
	}
	return nil
}
