package main

import (
	"fmt"
	"strings"

	"github.com/pennywise-app/pennywise-go/pkg/pennywise"
	"github.com/spf13/cobra"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change account preferences",
	}
	cmd.AddCommand(profileShowCmd(), profileSetCmd(), profileDeleteDataCmd())
	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the signed-in profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.client.Profile.Ensure(cmd.Context())
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, p)
			}
			tw := newTable(a.out, "FIELD", "VALUE")
			row(tw, "Email", p.Email)
			row(tw, "Name", p.Name)
			row(tw, "Currency", p.Currency)
			row(tw, "Theme", p.Theme)
			row(tw, "ID", p.ID)
			return tw.Flush()
		},
	}
}

func profileSetCmd() *cobra.Command {
	var name, currency, theme string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change name, currency or theme",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := &pennywise.UpdateProfileParams{}
			if cmd.Flags().Changed("name") {
				params.Name = &name
			}
			if cmd.Flags().Changed("currency") {
				c := strings.ToUpper(currency)
				params.Currency = &c
			}
			if cmd.Flags().Changed("theme") {
				t := strings.ToLower(theme)
				params.Theme = &t
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.client.Profile.Update(cmd.Context(), params)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(a.out, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency code, e.g. EUR")
	cmd.Flags().StringVar(&theme, "theme", "", "light or dark")
	return cmd
}

func profileDeleteDataCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-data",
		Short: "Permanently delete every transaction, budget and goal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete all data without --yes")
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.client.Profile.DeleteAllData(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
