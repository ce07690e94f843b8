/*
The deadval command reports dead values in whole programs of a typed
ML-family functional language.

	Usage: deadval [flags] artifact.json...

deadval loads each named artifact file (the typed-AST encoding that
the artifact package's JSON schema defines), then runs a whole-program
0-CFA closure analysis followed by a liveness solve over the resulting
dependency graph. Any expression or binding that the solve proves
unreachable from the program's externally observable behavior is
reported as dead.

The -whyalive and -whydead flags explain a single identifier's
liveness by printing the shortest dependency-graph path from the
program's root to its flow node, the way 'go list -deps' explains a
package's import chain. The identifier is named as "module.name".

The -write flag back-annotates every dead range into its source file
as an inline comment marker instead of printing a report.

The -suppress flag takes a comma-separated list of path prefixes;
warnings whose source file starts with one are dropped.

The -debug flag dumps the closure map, pending reductions, and
liveness map to stderr, for inspecting one run's intermediate state.
*/
package main
