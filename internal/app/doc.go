// Package app wires a build together: it loads build files, resolves
// parameters, registers targets, plans the requested goals and runs them,
// independently of any entrypoint like a CLI.
package app
