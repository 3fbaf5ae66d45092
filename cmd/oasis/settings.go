package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oasis-iglesia/oasis/internal/adminapi"
	"github.com/oasis-iglesia/oasis/internal/app"
	"github.com/oasis-iglesia/oasis/internal/channel"
	"github.com/oasis-iglesia/oasis/internal/notify"
)

var secretKeys = map[string]bool{
	app.CategoryWhatsApp + "." + channel.KeyAPIKey: true,
	app.CategoryNotify + "." + notify.KeySMTPPass:  true,
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change runtime settings",
	}
	cmd.AddCommand(settingsShowCmd(), settingsSetCmd())
	return cmd
}

func settingsShowCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print every setting as category.name=value",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Release()

			for _, category := range []string{app.CategoryWhatsApp, app.CategoryNotify} {
				values, err := a.ConfigMgr().All(context.Background(), category)
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(values))
				for k := range values {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					full := category + "." + k
					v := values[k]
					if secretKeys[full] && !reveal {
						v = adminapi.MaskSecret(v)
					}
					if k == channel.KeyQRCode && len(v) > 32 {
						v = v[:32] + "..."
					}
					fmt.Printf("%s=%s\n", color.CyanString(full), v)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secrets unmasked")
	return cmd
}

func settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set category.name=value...",
		Short:   "Write one or more settings",
		Example: "  oasis settings set whatsapp.evolution_url=http://evo:8080 whatsapp.evolution_key=XXXX",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args)
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Release()
			if err := a.SaveSettings(values); err != nil {
				return err
			}
			color.Green("%d setting(s) saved", len(values))
			return nil
		},
	}
}

func parseAssignments(args []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(args))
	for _, arg := range args {
		k, v, found := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !found || !strings.Contains(k, ".") {
			return nil, fmt.Errorf("invalid assignment %q, want category.name=value", arg)
		}
		values[k] = v
	}
	return values, nil
}
