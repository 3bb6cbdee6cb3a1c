package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/ui"
	"github.com/brck/brckctl/internal/workflow"
)

func newPowerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Show or change the power schedule",
	}
	cmd.AddCommand(newPowerShowCmd(), newPowerSetCmd())
	return cmd
}

func newPowerShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the power mode and its settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSession(auth.RoutePower); err != nil {
				return err
			}
			return showPower(cmd, a)
		},
	}
}

func showPower(cmd *cobra.Command, a *appliance) error {
	power, err := a.client.Power(cmd.Context())
	if err != nil {
		return failed("Failed to get power settings", err)
	}
	return a.render("Power", power, power.FormatDetailed, nil)
}

// powerFlags maps flag names to /power fields.
var powerFlags = []struct {
	flag, field, usage string
}{
	{"mode", "mode", "Power mode (ALWAYS_ON, NORMAL, TIMED, VEHICLE, MANUAL)"},
	{"soc-on", "soc_on", "Battery percentage to power on at"},
	{"soc-off", "soc_off", "Battery percentage to power off at"},
	{"on-time", "on_time", "Time to power on (HH:MM)"},
	{"off-time", "off_time", "Time to power off (HH:MM)"},
	{"delay-off", "delay_off_minutes", "Minutes to wait before powering off"},
}

func newPowerSetCmd() *cobra.Command {
	values := make(map[string]*string, len(powerFlags))

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the power mode and schedule",
		Long: `Change the power mode and schedule.

Only the flags given are sent. Which fields a mode uses:
  SOC fields (--soc-on, --soc-off):     MANUAL, NORMAL, TIMED
  Time fields (--on-time, --off-time):  TIMED, VEHICLE, MANUAL
  Delay (--delay-off):                  MANUAL, VEHICLE`,
		Example: `  # Power on at 06:00 and off at 20:00
  brckctl power set --mode TIMED --on-time 06:00 --off-time 20:00 --soc-on 20 --soc-off 5

  # Keep running 10 minutes after the vehicle stops
  brckctl power set --mode VEHICLE --delay-off 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := make(map[string]string)
			for _, f := range powerFlags {
				if cmd.Flags().Changed(f.flag) {
					in[f.field] = *values[f.flag]
				}
			}
			if len(in) == 0 {
				return fmt.Errorf("nothing to change: pass at least one of --mode, --soc-on, --soc-off, --on-time, --off-time, --delay-off")
			}
			if m, ok := in["mode"]; ok {
				in["mode"] = strings.ToUpper(m)
			}

			payload, errs := workflow.BuildPowerPayload(in)
			if len(errs) > 0 {
				return failed("Invalid power settings", workflow.ValidationError(errs))
			}

			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSession(auth.RoutePower); err != nil {
				return err
			}
			if err := a.client.ConfigurePower(cmd.Context(), payload); err != nil {
				return failed("Failed to update power settings", err)
			}
			if !quiet() {
				a.out.PrintSuccess("Power settings updated")
			}
			return showPower(cmd, a)
		},
	}
	for _, f := range powerFlags {
		values[f.flag] = cmd.Flags().String(f.flag, "", f.usage)
	}
	return cmd
}

func newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Show storage usage or set the FTP account",
	}
	cmd.AddCommand(newStorageShowCmd(), newStorageFTPCmd())
	return cmd
}

func newStorageShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show storage usage and FTP state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSession(auth.RouteStorage); err != nil {
				return err
			}
			st, err := a.client.Storage(cmd.Context())
			if err != nil {
				return failed("Failed to get storage state", err)
			}
			return a.render("Storage", st, st.FormatDetailed, st.Storage.Format)
		},
	}
}

func newStorageFTPCmd() *cobra.Command {
	var login string

	cmd := &cobra.Command{
		Use:   "ftp",
		Short: "Set the FTP login and password",
		Long: `Set the FTP account used to reach the appliance storage.

The password is prompted for twice, without echo on a terminal.`,
		Example: `  brckctl storage ftp --login media`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAppliance(cmd)
			if err != nil {
				return err
			}
			if err := a.requireSession(auth.RouteStorage); err != nil {
				return err
			}

			prompt := ui.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			user := login
			if user == "" {
				if user, err = prompt.Line("FTP login", ""); err != nil {
					return err
				}
			}
			password, err := prompt.Secret("FTP password")
			if err != nil {
				return err
			}
			confirmation, err := prompt.Secret("Confirm FTP password")
			if err != nil {
				return err
			}
			if password != confirmation {
				return failed("Invalid FTP account",
					brckapi.NewValidationError("Passwords do not match", map[string]string{"password_confirmation": "does not match"}))
			}
			if errs := workflow.ValidateFTP(user, password); len(errs) > 0 {
				return failed("Invalid FTP account", workflow.ValidationError(errs))
			}

			if err := a.client.ConfigureFTP(cmd.Context(), brckapi.Credentials{Login: user, Password: password}); err != nil {
				return failed("Failed to set FTP account", err)
			}
			if !quiet() {
				a.out.PrintSuccess("FTP account updated", ui.Detail{Key: "Login", Value: user})
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "FTP login (prompted when empty)")
	return cmd
}
