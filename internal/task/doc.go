// Package task runs the background sweep that expires old correlation
// records and reports jobs that never called back.
package task
