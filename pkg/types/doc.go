// Package types defines the report row model, status values, report schema,
// the Store interface, run configuration, and the standard errors shared by
// every logtriage package.
package types
