package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/registry"
)

// List handles the list command. An empty tier lists every tier.
func List(_ context.Context, g Globals, tier string) error {
	if tier != "" && !config.IsTier(tier) {
		return fmt.Errorf("invalid --prod_level %q: must be one of %s", tier, strings.Join(config.Tiers, ", "))
	}

	settings, err := loadSettings(g)
	if err != nil {
		return err
	}

	reg := registry.OpenReadOnly(settings.StateDir, config.LoadTimeouts().Lock)
	entries, err := reg.List()
	if err != nil {
		return err
	}

	var shown []registry.Entry
	for _, entry := range entries {
		if tier == "" || entry.Tier == tier {
			shown = append(shown, entry)
		}
	}

	renderEntries(shown)
	return nil
}

func renderEntries(entries []registry.Entry) {
	printTitle(out, "hpcmaker: %d active", len(entries))
	fmt.Fprintln(out, dimStyle.Render("  "+strings.Repeat("═", 30)))
	if len(entries) == 0 {
		fmt.Fprintln(out, dimStyle.Render("  nothing to list"))
		return
	}

	fmt.Fprintln(out, sectionStyle.Render(fmt.Sprintf("  %-9s %-6s %-24s %-12s %s", "KIND", "TIER", "NAME", "ZONE", "SERIAL")))
	for _, e := range entries {
		fmt.Fprintf(out, "  %-9s %-6s %-24s %-12s %s\n", e.Kind, e.Tier, e.Owner+"-"+e.Name, e.Zone, e.Serial)
		fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("  %-9s created %s", "", e.CreatedAt.Format("2006-01-02 15:04:05 MST"))))
	}
}
