// Package push subscribes to the appliance's live event channels.
//
// Each channel is a WebSocket at <push base>/<channel> that carries JSON
// envelopes of the form {"event": name, "data": {...}}. A Subscription owns
// one reader goroutine that reconnects with capped exponential backoff until
// it is unsubscribed. Transport and parse failures are logged and reported to
// the onError callback; they never tear down the caller.
package push
