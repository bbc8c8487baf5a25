// Package cli turns command-line arguments into an app.Config, runs the
// build and maps its outcome to a process exit code.
package cli
