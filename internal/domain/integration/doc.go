// Package integration defines the ports to the external systems the backend talks to:
// the ERP, the node fleet orchestrator, the metrics store, the chat app, the CRM and the
// document storage. Adapters live in infrastructure.
package integration
