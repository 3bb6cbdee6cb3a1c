// Package config manages the brckctl settings file.
//
// Settings live in a YAML file in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/brckctl/config.yaml or $HOME/.config/brckctl/config.yaml
//   - macOS: $HOME/.config/brckctl/config.yaml
//   - Windows: %LOCALAPPDATA%\brckctl\config.yaml
//
// The file holds the appliance endpoint, request timeouts, the poll interval
// and discovery preferences, plus a small record of appliances seen on the
// local network. Passwords are never written here. The session token lives
// in its own file, managed by package session.
//
// Values resolve in this order: command-line flags, then environment
// (BRCK_URL, BRCK_PUSH_URL), then the file, then built-in defaults.
//
//	settings, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	settings.ApplyEnv()
//	client := brckapi.NewClient(settings.Appliance.URL, store)
package config
