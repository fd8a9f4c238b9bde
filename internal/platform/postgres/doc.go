// Package postgres provides the PostgreSQL implementation of the store
// interfaces. The callback_records table is the single shared mutable
// resource in the system; every state transition it performs is conditional
// so concurrent webhook deliveries cannot double-resume a workflow.
package postgres
