package hittest

import "github.com/Oriol-1/modificador-pdf/coords"

// quadTree is a spatial index over rectangles. Rectangles overlapping a
// split line stay on the inner node that could not pass them down.
type quadTree struct {
	bounds   coords.Rect
	capacity int
	depth    int
	entries  []treeEntry
	nodes    []*quadTree
}

// maxTreeDepth bounds subdivision. More than capacity coincident
// degenerate boxes (size 0, zero advances) would otherwise split into
// ever smaller cells that all still contain them.
const maxTreeDepth = 16

type treeEntry struct {
	rect  coords.Rect
	index int
}

func newQuadTree(bounds coords.Rect, capacity int) *quadTree {
	return &quadTree{
		bounds:   bounds,
		capacity: capacity,
		entries:  make([]treeEntry, 0, capacity),
	}
}

func (qt *quadTree) insert(rect coords.Rect, index int) bool {
	if !qt.bounds.Intersects(rect) {
		return false
	}

	if qt.nodes != nil {
		for _, node := range qt.nodes {
			if node.bounds.ContainsRect(rect) {
				if node.insert(rect, index) {
					return true
				}
			}
		}
		// Straddles a split line; it belongs to this node.
		qt.entries = append(qt.entries, treeEntry{rect: rect, index: index})
		return true
	}

	if len(qt.entries) < qt.capacity || qt.depth >= maxTreeDepth {
		qt.entries = append(qt.entries, treeEntry{rect: rect, index: index})
		return true
	}

	qt.subdivide()
	old := qt.entries
	qt.entries = make([]treeEntry, 0, qt.capacity)
	for _, e := range old {
		qt.insert(e.rect, e.index)
	}
	return qt.insert(rect, index)
}

func (qt *quadTree) subdivide() {
	xMid := (qt.bounds.LLX + qt.bounds.URX) / 2
	yMid := (qt.bounds.LLY + qt.bounds.URY) / 2
	qt.nodes = []*quadTree{
		newQuadTree(coords.Rect{LLX: qt.bounds.LLX, LLY: yMid, URX: xMid, URY: qt.bounds.URY}, qt.capacity),
		newQuadTree(coords.Rect{LLX: xMid, LLY: yMid, URX: qt.bounds.URX, URY: qt.bounds.URY}, qt.capacity),
		newQuadTree(coords.Rect{LLX: qt.bounds.LLX, LLY: qt.bounds.LLY, URX: xMid, URY: yMid}, qt.capacity),
		newQuadTree(coords.Rect{LLX: xMid, LLY: qt.bounds.LLY, URX: qt.bounds.URX, URY: yMid}, qt.capacity),
	}
	for _, node := range qt.nodes {
		node.depth = qt.depth + 1
	}
}

func (qt *quadTree) query(r coords.Rect) []int {
	var found []int
	if !qt.bounds.Intersects(r) {
		return found
	}
	for _, e := range qt.entries {
		if e.rect.Intersects(r) {
			found = append(found, e.index)
		}
	}
	for _, node := range qt.nodes {
		found = append(found, node.query(r)...)
	}
	return found
}
