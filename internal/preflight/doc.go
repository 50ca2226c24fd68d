// Package preflight runs the checks behind `amanrdf doctor`: the data
// root holds work units, the backend location is writable and has room,
// the process may open enough files, and the backend answers.
//
//	checker := preflight.New(preflight.WithHealth(st.Health))
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to index
//	}
package preflight
