package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/auth"
	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/push"
	"github.com/brck/brckctl/internal/ui"
	"github.com/brck/brckctl/internal/workflow"
)

// defaultConnectWait bounds how long 'sim connect' follows connection events.
const defaultConnectWait = 90 * time.Second

// subscribeWait bounds how long a connect waits for the SIM event channel.
const subscribeWait = 2 * time.Second

var interfaceRoutes = map[brckapi.Interface]auth.Route{
	brckapi.SIM:      auth.RouteSIM,
	brckapi.Ethernet: auth.RouteEthernet,
	brckapi.WiFi:     auth.RouteWiFi,
}

func newInterfaceCmd(kind brckapi.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: fmt.Sprintf("List, configure and connect %s connections", kind.Label()),
	}
	cmd.AddCommand(
		newListCmd(kind),
		newConfigureCmd(kind),
		newConnectCmd(kind),
	)
	if kind == brckapi.SIM {
		cmd.AddCommand(newUnlockCmd())
	}
	return cmd
}

// openEngine opens the appliance and loads the slots of kind.
func openEngine(cmd *cobra.Command, kind brckapi.Interface) (*appliance, *workflow.Engine, error) {
	a, err := openAppliance(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := a.requireSession(interfaceRoutes[kind]); err != nil {
		return nil, nil, err
	}
	e := workflow.NewEngine(kind, a.client)
	if err := e.Refresh(cmd.Context()); err != nil {
		return nil, nil, failed(fmt.Sprintf("Failed to list %s connections", kind.Label()), err)
	}
	return a, e, nil
}

func newListCmd(kind brckapi.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   fmt.Sprintf("List %s connections", kind.Label()),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, e, err := openEngine(cmd, kind)
			if err != nil {
				return err
			}
			slots := e.Snapshot().Slots
			return a.render(kind.Label()+" connections", slots,
				func() string { return brckapi.FormatSlotsDetailed(slots) },
				func() string { return brckapi.FormatSlotsCompact(slots) })
		},
	}
}

func fieldNames(kind brckapi.Interface) string {
	specs := workflow.FieldsFor(kind, workflow.DialogConfigure)
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}

func newConfigureCmd(kind brckapi.Interface) *cobra.Command {
	var sets []string

	examples := map[brckapi.Interface]string{
		brckapi.SIM: `  brckctl sim configure SIM1 --set apn=safaricom
  brckctl sim configure SIM1 --set apn=internet --set apn_user= --set apn_password=`,
		brckapi.Ethernet: `  brckctl ethernet configure ETHERNET1 --set dhcp_enabled=true
  brckctl ethernet configure ETHERNET1 --set dhcp_enabled=false --set ipaddr=192.168.1.50 \
      --set netmask=255.255.255.0 --set gateway=192.168.1.1 --set dns=8.8.8.8`,
		brckapi.WiFi: `  brckctl wifi configure WIFI1 --set ssid=Office --set encryption=psk2 --set key=secret123`,
	}

	cmd := &cobra.Command{
		Use:   "configure <id>",
		Short: fmt.Sprintf("Change the settings of a %s connection", kind.Label()),
		Long: fmt.Sprintf(`Change the settings of a %s connection.

Each --set assigns one form field. Fields not given keep their current
values. Fields: %s.`, kind.Label(), fieldNames(kind)),
		Example: examples[kind],
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, order, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			if len(order) == 0 {
				return fmt.Errorf("nothing to change: pass --set name=value (fields: %s)", fieldNames(kind))
			}

			a, e, err := openEngine(cmd, kind)
			if err != nil {
				return err
			}
			id := args[0]
			if err := e.SelectForConfigure(id); err != nil {
				return failed("Cannot configure "+id, err)
			}
			for _, name := range order {
				if err := e.SetField(name, values[name]); err != nil {
					if errors.Is(err, workflow.ErrUnknownField) {
						return fmt.Errorf("%s has no field %q (fields: %s)", kind.Label(), name, fieldNames(kind))
					}
					return err
				}
			}

			if err := e.Submit(cmd.Context()); err != nil {
				return failed("Configuration rejected", err)
			}
			return printSlot(a, e, id, "Configuration saved")
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field assignment name=value (repeatable)")
	return cmd
}

func printSlot(a *appliance, e *workflow.Engine, id, title string) error {
	slot, ok := e.Snapshot().Slot(id)
	if quiet() {
		return a.render("", slot, nil, nil)
	}
	details := []ui.Detail{{Key: "Connection", Value: id}}
	for _, c := range e.Cards() {
		if c.SlotID == id {
			details = append(details, ui.Detail{Key: "Status", Value: c.Status})
		}
	}
	a.out.PrintSuccess(title, details...)
	if ok {
		a.out.PrintSection(slot.Name, brckapi.FormatSlotsDetailed([]brckapi.Slot{slot}))
	}
	return nil
}

func newConnectCmd(kind brckapi.Interface) *cobra.Command {
	var (
		wait time.Duration
		apn  string
	)

	cmd := &cobra.Command{
		Use:   "connect <id>",
		Short: fmt.Sprintf("Make a %s connection the active uplink", kind.Label()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, e, err := openEngine(cmd, kind)
			if err != nil {
				return err
			}
			id := args[0]
			dialog, err := e.SelectForConnect(id)
			if err != nil {
				return failed("Cannot connect "+id, err)
			}
			if dialog == workflow.DialogUnlock {
				return failed("SIM is locked", fmt.Errorf("run 'brckctl sim unlock %s' first", id))
			}

			stop := followEvents(cmd.Context(), a, e, wait)
			defer stop()

			if err := e.Connect(cmd.Context()); err != nil {
				return failed("Connection failed", err)
			}
			if kind != brckapi.SIM || wait <= 0 {
				return printSlot(a, e, id, "Connection requested")
			}
			return awaitFlow(cmd.Context(), a, e, id, wait, apn)
		},
	}
	if kind == brckapi.SIM {
		cmd.Flags().DurationVar(&wait, "wait", defaultConnectWait, "How long to follow connection events (0 to return at once)")
		cmd.Flags().StringVar(&apn, "apn", "", "APN to send if the SIM asks for one while connecting")
	}
	return cmd
}

func newUnlockCmd() *cobra.Command {
	var (
		pin, puk string
		wait     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "unlock <id>",
		Short: "Send the PIN or PUK of a locked SIM",
		Long: `Send the PIN, or the PUK and a new PIN, of a locked SIM.

The PIN is prompted for when neither --pin nor --puk is given.`,
		Example: `  brckctl sim unlock SIM2
  brckctl sim unlock SIM2 --puk 12345678 --pin 1234`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, e, err := openEngine(cmd, brckapi.SIM)
			if err != nil {
				return err
			}
			id := args[0]
			if _, err := e.SelectForConnect(id); err != nil {
				return failed("Cannot unlock "+id, err)
			}

			p, k := pin, puk
			if p == "" && k == "" {
				prompt := ui.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
				if p, err = prompt.Secret("PIN"); err != nil {
					return err
				}
			}

			stop := followEvents(cmd.Context(), a, e, wait)
			defer stop()

			if err := e.SubmitPIN(cmd.Context(), p, k); err != nil {
				return failed("Unlock failed", err)
			}
			if wait <= 0 {
				return printSlot(a, e, id, "PIN sent")
			}
			return awaitFlow(cmd.Context(), a, e, id, wait, "")
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "SIM PIN (new PIN when used with --puk)")
	cmd.Flags().StringVar(&puk, "puk", "", "SIM PUK")
	cmd.Flags().DurationVar(&wait, "wait", 0, "How long to follow connection events")
	return cmd
}

// followEvents feeds the SIM push channel into e while a connection attempt
// runs. It does nothing for other interfaces or when wait is zero.
func followEvents(ctx context.Context, a *appliance, e *workflow.Engine, wait time.Duration) (stop func()) {
	if e.Kind() != brckapi.SIM || wait <= 0 {
		return func() {}
	}
	dialer := push.NewDialer(a.settings.Appliance.PushBaseURL(), a.store)
	sub, err := dialer.Subscribe(ctx, push.ChannelSIM,
		func(msg push.Message) {
			if msg.Event != push.EventConnection {
				return
			}
			ev, err := push.DecodeConnectionEvent(msg)
			if err != nil {
				logging.Warn("Dropping malformed connection event", zap.Error(err))
				return
			}
			logging.LogConnection(e.Kind().Label(), ev.Event)
			e.OnConnectionEvent(ev)
		},
		func(err error) {
			logging.Debug("SIM event channel error", zap.Error(err))
		},
	)
	if err != nil {
		logging.Warn("Cannot follow SIM events", zap.Error(err))
		return func() {}
	}

	// The appliance only reports the switch to listeners already connected
	// when the write lands.
	deadline := time.Now().Add(subscribeWait)
	for !sub.Connected() && time.Now().Before(deadline) && ctx.Err() == nil {
		time.Sleep(10 * time.Millisecond)
	}
	if !sub.Connected() {
		logging.Debug("SIM event channel not open yet, continuing")
	}
	return sub.Unsubscribe
}

// awaitFlow prints connection events until the attempt finishes, fails,
// asks for a credential or wait runs out. A non-empty apn answers an APN
// request once.
func awaitFlow(ctx context.Context, a *appliance, e *workflow.Engine, id string, wait time.Duration, apn string) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	if !quiet() {
		fmt.Fprintf(a.w, "Waiting for %s to connect (up to %s)...\n", id, wait)
	}
	printed := 0
	for {
		s := e.Snapshot()
		if printed > len(s.EventLog) {
			printed = 0
		}
		for _, ev := range s.EventLog[printed:] {
			printEvent(a, ev)
		}
		printed = len(s.EventLog)

		switch {
		case s.LastError != nil:
			return failed("Connection failed", errors.New(s.LastError.Message))
		case s.FlowDone:
			if err := e.Refresh(ctx); err != nil {
				logging.Debug("Refresh after connect failed", zap.Error(err))
			}
			return printSlot(a, e, id, "Connected")
		case s.Prompt == workflow.PromptPIN || s.Prompt == workflow.PromptPUK:
			return failed("SIM needs a "+strings.ToUpper(s.Prompt.String()),
				fmt.Errorf("run 'brckctl sim unlock %s'", id))
		case s.Prompt == workflow.PromptAPN && apn != "":
			if !quiet() {
				fmt.Fprintf(a.w, "Sending APN %s\n", apn)
			}
			if err := e.SubmitAPN(ctx, apn, "", ""); err != nil {
				return failed("APN rejected", err)
			}
			apn, printed = "", 0
			continue
		case s.Prompt == workflow.PromptAPN:
			return failed("SIM needs an APN",
				fmt.Errorf("run 'brckctl sim configure %s --set apn=<apn>'", id))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if !quiet() {
				a.out.PrintWarning("Still connecting",
					ui.Detail{Key: "Connection", Value: id},
					ui.Detail{Key: "Check with", Value: "brckctl sim list"})
			}
			return nil
		case <-e.Changes():
		}
	}
}

func printEvent(a *appliance, ev push.ConnectionEvent) {
	if quiet() {
		return
	}
	marker := "•"
	style := ui.MutedStyle
	if workflow.IsFailureEvent(ev.Event) {
		marker, style = ui.FailureMarker, ui.ErrorMessageStyle
	}
	fmt.Fprintf(a.w, "  %s %-20s %s\n", marker, ev.Event, style.Render(ev.Description))
}
