// Package tui implements the brckctl dashboard, a full-screen terminal view
// of one SupaBRCK.
//
// The dashboard is a Bubble Tea program. It does not own any appliance
// state itself. Connectivity views project a workflow.Engine snapshot,
// navigation goes through an auth.Gate, and live data arrives on push
// channels. Goroutines outside the program (engine change notifications,
// push callbacks, navigator listeners) talk to it only through
// tea.Program.Send.
//
// # Views
//
//   - Boot: waits for the appliance to answer
//   - Login and Change password: the session gate
//   - Dashboard: battery, uplink, clients and storage, live from /dashboard
//   - SIM, Ethernet, Wi-Fi: slot cards with configure, connect and unlock
//     dialogs; SIM connect shows the connection event log
//   - Power, Storage, Software: read-only status
//   - Diagnostics: temperatures and clients, live from /diagnostics
//
// # Usage
//
//	err := tui.Run(ctx, tui.Deps{
//	    Client:  client,
//	    Gate:    gate,
//	    Engines: engines,
//	    Dialer:  push.NewDialer(settings.Appliance.PushBaseURL(), store),
//	})
package tui
