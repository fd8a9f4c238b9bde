// Package service contains the application services coordinating job
// submission and webhook-driven workflow resumption. Services hold no
// in-process state; all coordination state lives in the correlation store.
package service
