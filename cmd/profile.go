package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagefinder/api/schemas"
	"github.com/xkilldash9x/pagefinder/internal/observability"
	"github.com/xkilldash9x/pagefinder/internal/store"
)

func newProfileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manages the stored user profile and saved selections",
	}
	profileCmd.PersistentFlags().String("store", "", "Store driver, sqlite, postgres or memory. (Overrides config/env)")

	profileCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Prints the profile and saved selections as an import bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(st *store.Store) error {
				ctx := cmd.Context()
				p, err := st.LoadProfile(ctx)
				if err != nil {
					return err
				}
				b := store.Bundle{UserProfile: &p, SavedSelections: map[string][]schemas.FormRegion{}}
				urls, err := st.SelectionURLs(ctx)
				if err != nil {
					return err
				}
				for _, u := range urls {
					regions, err := st.LoadSelections(ctx, u)
					if err != nil {
						return err
					}
					b.SavedSelections[u] = regions
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(b)
			})
		},
	})

	profileCmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Loads a bundle written by `profile show`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read bundle: %w", err)
			}
			var b store.Bundle
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("failed to parse bundle: %w", err)
			}
			return withStore(cmd, func(st *store.Store) error {
				if err := st.Import(cmd.Context(), b); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported profile=%t selections=%d\n", b.UserProfile != nil, len(b.SavedSelections))
				return nil
			})
		},
	})

	profileCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Sets a personal info field or a preference",
		Long: "Keys are personal info types such as firstName or zipCode, or one of the\n" +
			"preferences autofillEnabled, automaticSubmit and fillTimeout.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(st *store.Store) error {
				p, err := st.LoadProfile(cmd.Context())
				if err != nil {
					return err
				}
				if err := setProfileKey(&p, args[0], args[1]); err != nil {
					return err
				}
				return st.SaveProfile(cmd.Context(), p)
			})
		},
	})
	return profileCmd
}

// setProfileKey applies one key=value edit to p.
func setProfileKey(p *schemas.UserProfile, key, value string) error {
	switch key {
	case "autofillEnabled", "automaticSubmit":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false: %w", key, err)
		}
		if key == "autofillEnabled" {
			p.Preferences.AutofillEnabled = b
		} else {
			p.Preferences.AutomaticSubmit = b
		}
		return nil
	case "fillTimeout":
		ms, err := strconv.Atoi(value)
		if err != nil || ms < 0 || ms > schemas.MaxFillTimeoutMs {
			return fmt.Errorf("fillTimeout must be a whole number of milliseconds between 0 and %d", schemas.MaxFillTimeoutMs)
		}
		p.Preferences.FillTimeout = ms
		return nil
	}

	t := schemas.SemanticType(key)
	if !t.IsValid() {
		return fmt.Errorf("unknown profile key %q", key)
	}
	if p.PersonalInfo == nil {
		p.PersonalInfo = map[schemas.SemanticType]string{}
	}
	if value == "" {
		delete(p.PersonalInfo, t)
	} else {
		p.PersonalInfo[t] = value
	}
	return nil
}

// withStore opens the configured store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(*store.Store) error) error {
	cfg, err := configFrom(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(cmd.Context(), cfg.Store, observability.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}
