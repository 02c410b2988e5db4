package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/registry"
	"github.com/imamik/hpcmaker/internal/util/prerequisites"
)

// Doctor handles the doctor command.
//
// It validates the settings, checks every external tool and reads the
// registry. Missing required tools make it fail; the registry is only
// reported.
func Doctor(ctx context.Context, g Globals) error {
	settings, err := loadSettings(g)
	if err != nil {
		return err
	}

	printTitle(out, "hpcmaker doctor")

	fmt.Fprintln(out)
	fmt.Fprintln(out, sectionStyle.Render("  Settings"))
	printField(out, "State dir", settings.StateDir)
	printField(out, "Playbooks", settings.PlaybookDir)
	if settings.TemplatesDir != "" {
		printField(out, "Templates", settings.TemplatesDir)
	} else {
		printField(out, "Templates", dimStyle.Render("embedded"))
	}
	if settings.TurbotEnabled() {
		printField(out, "AWS profile", settings.ProfileFor("<owner>"))
	} else if settings.AWS.Profile != "" {
		printField(out, "AWS profile", settings.AWS.Profile)
	} else {
		printField(out, "AWS profile", dimStyle.Render("default chain"))
	}
	if settings.Notify.NATSURL != "" {
		printField(out, "NATS", settings.Notify.NATSURL)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, sectionStyle.Render("  Tools"))
	results := checkTools(ctx, prerequisites.All(settings.Tools))
	for _, r := range results.Results {
		switch {
		case r.Found:
			printField(out, r.Tool.Name, successStyle.Render(r.Version)+" "+dimStyle.Render(r.Path))
		case r.Tool.Required:
			printField(out, r.Tool.Name, errorStyle.Render("missing")+" "+dimStyle.Render(r.Tool.InstallURL))
		default:
			printField(out, r.Tool.Name, warnStyle.Render("missing (optional)"))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, sectionStyle.Render("  State"))
	reg := registry.OpenReadOnly(settings.StateDir, config.LoadTimeouts().Lock)
	if entries, err := reg.List(); err != nil {
		printWarning(out, err.Error())
	} else {
		printField(out, "Registry", reg.Root())
		printField(out, "Active", fmt.Sprint(len(entries)))
	}

	fmt.Fprintln(out)
	if err := results.Error(); err != nil {
		return err
	}
	printSuccess(out, "Ready")
	return nil
}
