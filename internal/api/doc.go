// Package api exposes external interfaces for submitting power usage
// analyses, tracking their progress, and asking natural-language questions
// that are routed to the analysis pipeline. It hosts the REST server used by
// the daemon and the Go SDK.
package api
