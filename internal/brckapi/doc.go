// Package brckapi is the client for the SupaBRCK local REST API.
//
// Client wraps every endpoint the dashboard uses: ping, authentication,
// password change, device mode, system status, software inventory,
// diagnostics, power, storage/FTP and the per-interface connection lists and
// slot configuration calls.
//
// # Session handling
//
// The token is read from a session.Store on every call and sent in the
// X-Auth-Token-Key header. The client never caches it.
//
// # Timeouts
//
// Reads are bounded by ReadTimeout (15s by default). Configuration calls
// use WriteTimeout (30s) because the appliance reloads its network stack
// before replying.
//
// # Errors
//
// Failures are returned as *Error with one of these kinds:
//   - KindSession: HTTP 401. The store is cleared and the OnSessionExpired
//     hook fires once per session.
//   - KindUnreachable: transport failure. The OnUnreachable hook fires.
//   - KindValidation: HTTP 422 with per-field messages in Fields.
//   - KindOperational: any other non-2xx.
//   - KindParse: a 2xx body that does not match the expected shape.
//
// Nothing is retried.
//
//	client := brckapi.NewClient(settings.Appliance.URL, store)
//	slots, err := client.Connections(ctx, brckapi.SIM)
//	if brckapi.IsValidation(err) {
//	    fmt.Println(brckapi.FieldErrors(err))
//	}
package brckapi
