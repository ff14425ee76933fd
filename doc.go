/*
Package rdb reads simulation results databases: sets of frs files holding
fixed-record time-history output from a finite-element/multibody solver.

We implement:

1. An entry catalog, the merged description of every result variable found
across the loaded files: object groups (mechanism objects such as Triads and
Parts), item groups (numbered collections such as nodes and elements), and
variable references (leaves bound to file positions).

2. A result container per open file, owning the byte layout of one fixed-size
record per time step and the mapping from physical time to file position.

3. An extractor orchestrating any number of containers over one shared
catalog: files can be added and removed at any time, restart files with
overlapping time windows are merged, and queries are resolved by hierarchical
path at the currently positioned time step.

4. Read operations turning raw record bytes into typed values (scalars,
vectors, matrices, symmetric tensors, or plain arrays), selected by the
variable's data class and element width.

# File structure

An frs file is a text header followed by a binary data segment:

  - an identification tag line carrying the byte order of the file,
  - heading assignments (MODULE = ...; DATETIME = ...;),
  - a VARIABLES: section declaring variables keyed by small integer IDs,
  - a DATABLOCKS: section laying out the per-step record as object groups
    {...}, item groups [...], and variable references <...>,
  - a DATA: marker after which raw records follow, one per time step.

The per-step record layout is not stored explicitly; it is reconstructed by
traversing the catalog in declaration order and accumulating each variable's
encoded size. Physical time is itself a variable (conventionally the first),
and scanning it once per file yields the time index used for positioning.

# Typical use

	ex, _ := rdb.NewExtractor("results", rdb.Options{})
	defer ex.Close()
	ex.AddFiles(files)

	descr := rdb.ResultDescription{OGType: "Triad", BaseID: 17, Path: []string{"Position matrix"}}
	entries := ex.Search(descr)

	ex.SetPosition(0.5, false)
	op, _ := rdb.NewReadOp(entries[0].(*rdb.VarRef))
	value, _ := op.Evaluate()

All mutable state is confined to the Extractor; two independent readers that
need to be positioned at different times must use two Extractors. No methods
are safe for concurrent use.
*/
package rdb
