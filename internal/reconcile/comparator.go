package reconcile

import (
	"fmt"
	"strconv"

	"github.com/stagefront/seatpack-sync/internal/models"
)

// PackTransformation is a structural relationship between vanished pack(s)
// and their replacement(s) within one (zone, row), preserving lineage.
type PackTransformation struct {
	Type            models.PackState // split, merge, shrink or transformed
	ConsumedPackIDs []string
	Results         []CandidatePack
}

// seatRange is a half-open interval [Lo, Hi) over seat numbers in one row.
type seatRange struct {
	Lo, Hi int
}

func (r seatRange) overlaps(o seatRange) bool {
	return r.Lo < o.Hi && o.Lo < r.Hi
}

// strictSubsetOf reports whether r is a non-empty strict subset of o.
func (r seatRange) strictSubsetOf(o seatRange) bool {
	if r.Lo >= r.Hi {
		return false
	}
	return r.Lo >= o.Lo && r.Hi <= o.Hi && (r.Lo > o.Lo || r.Hi < o.Hi)
}

// parseSeatRange converts a pack's start/end seat numbers into a half-open
// interval. Seat labels that fail to parse are reported as an error; callers
// treat such packs as non-overlapping rather than failing the pass.
func parseSeatRange(start, end string) (seatRange, error) {
	lo, err := strconv.Atoi(start)
	if err != nil {
		return seatRange{}, fmt.Errorf("parse start seat %q: %w", start, err)
	}
	hi, err := strconv.Atoi(end)
	if err != nil {
		return seatRange{}, fmt.Errorf("parse end seat %q: %w", end, err)
	}
	if hi < lo {
		return seatRange{}, fmt.Errorf("inverted seat range %d-%d", lo, hi)
	}
	return seatRange{Lo: lo, Hi: hi + 1}, nil
}

// Compare classifies the relationship between packs that disappeared since
// the last scrape and packs that newly appeared. Only packs sharing the same
// (zone, row) are correlated; cross-row matches are treated as unrelated
// vanish/create churn. Malformed seat numbers never abort the comparison:
// the affected pack simply participates in no transformation.
func Compare(vanished []*models.SeatPack, added []CandidatePack) []PackTransformation {
	type locKey struct{ zone, row string }

	vanishedByLoc := make(map[locKey][]*models.SeatPack)
	for _, p := range vanished {
		k := locKey{p.ZoneID, p.RowLabel}
		vanishedByLoc[k] = append(vanishedByLoc[k], p)
	}

	addedByLoc := make(map[locKey][]CandidatePack)
	for _, c := range added {
		k := locKey{c.ZoneID, c.RowLabel}
		addedByLoc[k] = append(addedByLoc[k], c)
	}

	var transformations []PackTransformation
	for loc, old := range vanishedByLoc {
		fresh, ok := addedByLoc[loc]
		if !ok {
			continue
		}
		transformations = append(transformations, compareLocation(old, fresh)...)
	}
	return transformations
}

// compareLocation builds the overlap graph between vanished and new packs of
// one (zone, row) and classifies each connected component.
func compareLocation(vanished []*models.SeatPack, added []CandidatePack) []PackTransformation {
	oldRanges := make([]seatRange, len(vanished))
	oldValid := make([]bool, len(vanished))
	for i, p := range vanished {
		r, err := parseSeatRange(p.StartSeatNumber, p.EndSeatNumber)
		oldRanges[i], oldValid[i] = r, err == nil
	}

	newRanges := make([]seatRange, len(added))
	newValid := make([]bool, len(added))
	for j, c := range added {
		r, err := parseSeatRange(c.StartSeatNumber, c.EndSeatNumber)
		newRanges[j], newValid[j] = r, err == nil
	}

	// Union vanished and new packs connected by range overlap.
	uf := newUnionFind(len(vanished) + len(added))
	for i := range vanished {
		if !oldValid[i] {
			continue
		}
		for j := range added {
			if newValid[j] && oldRanges[i].overlaps(newRanges[j]) {
				uf.union(i, len(vanished)+j)
			}
		}
	}

	components := make(map[int]*component)
	for i := range vanished {
		root := uf.find(i)
		c, ok := components[root]
		if !ok {
			c = &component{}
			components[root] = c
		}
		c.oldIdx = append(c.oldIdx, i)
	}
	for j := range added {
		root := uf.find(len(vanished) + j)
		c, ok := components[root]
		if !ok {
			c = &component{}
			components[root] = c
		}
		c.newIdx = append(c.newIdx, j)
	}

	var out []PackTransformation
	for _, c := range components {
		if len(c.oldIdx) == 0 || len(c.newIdx) == 0 {
			continue // plain vanish or plain create, not a transformation
		}
		out = append(out, classifyComponent(c, vanished, added, oldRanges, newRanges))
	}
	return out
}

type component struct {
	oldIdx []int
	newIdx []int
}

func classifyComponent(
	c *component,
	vanished []*models.SeatPack,
	added []CandidatePack,
	oldRanges, newRanges []seatRange,
) PackTransformation {
	consumed := make([]string, len(c.oldIdx))
	for i, idx := range c.oldIdx {
		consumed[i] = vanished[idx].InternalPackID
	}
	results := make([]CandidatePack, len(c.newIdx))
	news := make([]seatRange, len(c.newIdx))
	for i, idx := range c.newIdx {
		results[i] = added[idx]
		news[i] = newRanges[idx]
	}

	kind := models.StateTransformed
	switch {
	case len(c.oldIdx) == 1 && len(c.newIdx) >= 2:
		if covered(oldRanges[c.oldIdx[0]], news) {
			kind = models.StateSplit
		}
	case len(c.oldIdx) >= 2 && len(c.newIdx) == 1:
		merged := true
		for _, idx := range c.oldIdx {
			if !covered(oldRanges[idx], news) {
				merged = false
				break
			}
		}
		if merged {
			kind = models.StateMerge
		}
	case len(c.oldIdx) == 1 && len(c.newIdx) == 1:
		if news[0].strictSubsetOf(oldRanges[c.oldIdx[0]]) {
			kind = models.StateShrink
		}
	}

	return PackTransformation{
		Type:            kind,
		ConsumedPackIDs: consumed,
		Results:         results,
	}
}

// covered reports whether target is fully covered by the union of ranges.
func covered(target seatRange, ranges []seatRange) bool {
	for seat := target.Lo; seat < target.Hi; seat++ {
		hit := false
		for _, r := range ranges {
			if seat >= r.Lo && seat < r.Hi {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[ra] = rb
	}
}
