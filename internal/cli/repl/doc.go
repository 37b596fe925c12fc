// Package repl provides the interactive shell of gedis-cli.
//
//   - repl.go: Read-Eval-Print loop and line splitting
//   - completer.go: Completion of actor and method names
//   - history.go: Command history persistence
//
// Each line is split like a shell command line and handed to an Executor,
// so "greeter add2 1 2" in the shell behaves like "gedis-cli call greeter
// add2 1 2" on the command line.
package repl
