package canon

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"sort"
)

// Form is the canonical representative of a colored digraph's isomorphism
// class. Two graphs are isomorphic iff their Forms are Equal. Form also
// carries the automorphism orbit partition of the graph it was computed from.
type Form struct {
	cert  []byte
	hash  uint64
	orbit []int
}

// Hash returns a certificate hash suitable for bucketing Forms.
func (f *Form) Hash() uint64 {
	return f.hash
}

// Equal reports whether the two forms represent isomorphic graphs.
func (f *Form) Equal(o *Form) bool {
	return f.hash == o.hash && bytes.Equal(f.cert, o.cert)
}

// Orbit returns the automorphism orbit id of vertex v in the original graph.
// Vertices share an orbit id iff some automorphism maps one to the other.
func (f *Form) Orbit(v int) int {
	return f.orbit[v]
}

// searcher carries the state of the individualization-refinement search.
type searcher struct {
	g        *Digraph
	n        int
	bestCert []byte
	bestInv  []int // canonical position -> vertex, for the best leaf
	orbits   *unionFind
}

// Canonical computes the canonical form of g.
//
// The search is the classic individualization-refinement scheme: refine the
// color partition to an equitable one, branch on the vertices of the first
// non-singleton cell, and keep the lexicographically smallest leaf
// certificate. Automorphisms discovered when two leaves certify equally are
// folded into a union-find, which both yields the orbit partition and prunes
// branches on vertices already known equivalent to an explored sibling.
func (g *Digraph) Canonical() *Form {
	n := g.NumVertices()
	s := &searcher{g: g, n: n, orbits: newUnionFind(n)}

	cells := initialCells(g.colors)
	s.search(s.refine(cells))

	h := fnv.New64a()
	h.Write(s.bestCert)
	return &Form{
		cert:  s.bestCert,
		hash:  h.Sum64(),
		orbit: s.orbits.canonicalIDs(),
	}
}

// initialCells partitions vertices by color, cells ordered by color value.
func initialCells(colors []int) [][]int {
	byColor := map[int][]int{}
	for v, c := range colors {
		byColor[c] = append(byColor[c], v)
	}
	keys := make([]int, 0, len(byColor))
	for c := range byColor {
		keys = append(keys, c)
	}
	sort.Ints(keys)
	cells := make([][]int, 0, len(keys))
	for _, c := range keys {
		cells = append(cells, byColor[c])
	}
	return cells
}

// refine iterates signature splitting until the partition is equitable.
// New cells produced by a split are ordered by signature, which keeps the
// refinement isomorphism-invariant.
func (s *searcher) refine(cells [][]int) [][]int {
	for {
		cellOf := make([]int, s.n)
		for ci, cell := range cells {
			for _, v := range cell {
				cellOf[v] = ci
			}
		}
		next := make([][]int, 0, len(cells))
		split := false
		for _, cell := range cells {
			if len(cell) == 1 {
				next = append(next, cell)
				continue
			}
			groups := map[string][]int{}
			for _, v := range cell {
				sig := s.signature(v, cellOf, len(cells))
				groups[sig] = append(groups[sig], v)
			}
			if len(groups) == 1 {
				next = append(next, cell)
				continue
			}
			split = true
			sigs := make([]string, 0, len(groups))
			for sig := range groups {
				sigs = append(sigs, sig)
			}
			sort.Strings(sigs)
			for _, sig := range sigs {
				next = append(next, groups[sig])
			}
		}
		cells = next
		if !split {
			return cells
		}
	}
}

// signature encodes, per current cell, how many successors and predecessors
// of v land in it.
func (s *searcher) signature(v int, cellOf []int, numCells int) string {
	counts := make([]uint32, 2*numCells)
	for _, w := range s.g.succ[v] {
		counts[2*cellOf[w]]++
	}
	for _, w := range s.g.pred[v] {
		counts[2*cellOf[w]+1]++
	}
	buf := make([]byte, 4*len(counts))
	for i, c := range counts {
		binary.BigEndian.PutUint32(buf[4*i:], c)
	}
	return string(buf)
}

func (s *searcher) search(cells [][]int) {
	target := -1
	for ci, cell := range cells {
		if len(cell) > 1 {
			target = ci
			break
		}
	}
	if target == -1 {
		s.leaf(cells)
		return
	}

	cell := append([]int(nil), cells[target]...)
	sort.Ints(cell)
	tried := make([]int, 0, len(cell))
	for _, v := range cell {
		// Skip vertices already known to lie in the orbit of a tried sibling.
		redundant := false
		for _, u := range tried {
			if s.orbits.find(u) == s.orbits.find(v) {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}
		tried = append(tried, v)

		rest := make([]int, 0, len(cell)-1)
		for _, u := range cell {
			if u != v {
				rest = append(rest, u)
			}
		}
		child := make([][]int, 0, len(cells)+1)
		child = append(child, cells[:target]...)
		child = append(child, []int{v}, rest)
		child = append(child, cells[target+1:]...)
		s.search(s.refine(child))
	}
}

// leaf handles a discrete partition: build the certificate for the induced
// labeling and fold it into best-so-far / automorphism bookkeeping.
func (s *searcher) leaf(cells [][]int) {
	lab := make([]int, s.n) // vertex -> canonical position
	inv := make([]int, s.n) // canonical position -> vertex
	for pos, cell := range cells {
		lab[cell[0]] = pos
		inv[pos] = cell[0]
	}
	cert := s.certificate(lab, inv)

	switch {
	case s.bestCert == nil || bytes.Compare(cert, s.bestCert) < 0:
		s.bestCert = cert
		s.bestInv = inv
	case bytes.Equal(cert, s.bestCert):
		// Equal certificates: inv ∘ bestLab is an automorphism.
		for pos := 0; pos < s.n; pos++ {
			s.orbits.union(s.bestInv[pos], inv[pos])
		}
	}
}

func (s *searcher) certificate(lab, inv []int) []byte {
	var buf bytes.Buffer
	writeInt := func(x int) {
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(x))
		buf.Write(tmp[:])
	}
	writeInt(s.n)
	for pos := 0; pos < s.n; pos++ {
		writeInt(s.g.colors[inv[pos]])
	}
	edges := make([][2]int, 0)
	for v := 0; v < s.n; v++ {
		for _, w := range s.g.succ[v] {
			edges = append(edges, [2]int{lab[v], lab[w]})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	writeInt(len(edges))
	for _, e := range edges {
		writeInt(e[0])
		writeInt(e[1])
	}
	return buf.Bytes()
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// canonicalIDs renumbers roots densely in vertex order.
func (u *unionFind) canonicalIDs() []int {
	ids := make([]int, len(u.parent))
	seen := map[int]int{}
	next := 0
	for v := range u.parent {
		r := u.find(v)
		id, ok := seen[r]
		if !ok {
			id = next
			next++
			seen[r] = id
		}
		ids[v] = id
	}
	return ids
}
