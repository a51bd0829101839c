package callgraph

// Stats is a point-in-time snapshot of a Graph's size, useful for
// reporting and for tests asserting load-factor-triggered growth.
type Stats struct {
	Nodes         uint64
	NodeCap       uint64
	NameCount     uint64
	NameCap       uint64
	UsernameCount uint64
	UsernameCap   uint64
	FileCount     uint64
	LabelCount    int
}

// Stats returns a snapshot of the graph's current size. Each field is
// read independently, so the snapshot is not a single atomic instant,
// only an approximation useful for monitoring and tests.
func (g *Graph) Stats() Stats {
	nodeCap, _ := g.nodes.Backing()

	return Stats{
		Nodes:         g.nodes.Count(),
		NodeCap:       nodeCap,
		NameCount:     g.byName.Size(),
		NameCap:       g.byName.Cap(),
		UsernameCount: g.byUsername.Size(),
		UsernameCap:   g.byUsername.Cap(),
		FileCount:     g.byFile.Size(),
		LabelCount:    len(g.AllLabels()),
	}
}
