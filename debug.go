package rdb

import (
	"fmt"
	"io"
	"strings"
)

// DumpHierarchy writes an indented view of the merged catalog: the
// top-level variables first, then every object type group with its objects
// and their result trees. Intended for debugging and the dump tool.
func (ex *Extractor) DumpHierarchy(w io.Writer) {
	for _, e := range ex.TopLevelVars() {
		dumpEntry(w, e, 0)
	}
	for _, sog := range ex.SuperGroups() {
		fmt.Fprintf(w, "%s\n", sog.Description())
		for _, f := range sog.Fields() {
			dumpEntry(w, f, 1)
		}
	}
}

func dumpEntry(w io.Writer, e Entry, depth int) {
	indent := strings.Repeat("  ", depth)
	switch x := e.(type) {
	case *VarRef:
		fmt.Fprintf(w, "%s<%s> (%s, %d file(s))\n",
			indent, x.Description(), x.Var.DataClass, len(x.Refs))
	case *ObjectGroup:
		fmt.Fprintf(w, "%s{%s [%d] %q}\n", indent, x.Type(), x.uID, x.description)
		for _, f := range x.Fields() {
			dumpEntry(w, f, depth+1)
		}
	case *ItemGroup:
		fmt.Fprintf(w, "%s[%s]\n", indent, x.Description())
		for _, f := range x.Fields() {
			dumpEntry(w, f, depth+1)
		}
	default:
		fmt.Fprintf(w, "%s%s\n", indent, e.Description())
	}
}

// PrintInfo writes the container's size parameters.
func (c *Container) PrintInfo(w io.Writer) {
	fmt.Fprintf(w, "File:        %s\n", c.fileName)
	fmt.Fprintf(w, "Module:      %s\n", c.module)
	if !c.date.IsZero() {
		fmt.Fprintf(w, "Written:     %s\n", c.date.Format(dateLayout))
	}
	fmt.Fprintf(w, "Header:      %d bytes\n", c.headerSize)
	fmt.Fprintf(w, "Step record: %d bytes\n", c.stepSize)
	fmt.Fprintf(w, "Steps:       %d\n", len(c.times))
	if len(c.times) > 0 {
		fmt.Fprintf(w, "Time range:  [%g, %g]\n", c.times[0].t, c.times[len(c.times)-1].t)
	}
}
