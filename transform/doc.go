// Package transform drives a complete archive transformation.
//
// ParseOptions turns a flat, order-independent option map into Options.
// A Manager then resolves the selection, plans the output spectral grid,
// rewrites the auxiliary tables, picks the channel transforms and builds the
// row iterator once in Setup; Run pulls row buffers from the iterator and
// hands each to the writer until the input is exhausted.
//
//	opts, err := transform.ParseOptions(map[string]any{
//		"datacolumn":  "data",
//		"chanaverage": true,
//		"chanbin":     4,
//	})
//	m := transform.New(opts, transform.WithLogger(logger))
//	if err := m.Setup(src, dst); err != nil { ... }
//	summary, err := m.Run()
package transform
