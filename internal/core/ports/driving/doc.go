// Package driving provides interfaces for primary/inbound ports: the
// operations the CLI (or any other driver) invokes on the core services.
package driving
