// Package feed defines the session lifecycle event model and the sinks the
// root dispatcher delivers into. UI layers subscribe here to learn about
// logins, refreshes, logouts, and externally forced logouts without polling
// the session view.
package feed
