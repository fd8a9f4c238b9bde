// Package domain contains the core entities of the callback coordination
// subsystem, chiefly the correlation record that ties an external GPU job to
// the workflow execution waiting on it. It is independent of any storage or
// delivery mechanism.
package domain
