// Package observability keeps the board client's feedback, reorder and
// action events in a JSON Lines log. Metrics and health alerts are derived
// from that log on demand; errors may also be mirrored to a webhook.
package observability
