package pose

import (
	"math"
	"sort"
)

const (
	// pafSampleCount is the number of points sampled along a candidate limb.
	pafSampleCount = 10
	// pafSampleThreshold is the minimum projected PAF response per sample.
	pafSampleThreshold = 0.05
	// minPartCount and minMeanScore gate person records in the final output.
	minPartCount = 4
	minMeanScore = 0.4
)

// Person is one assembled skeleton: 18 part slots holding candidate peak ids
// (-1 when unassigned), its accumulated confidence score and part count.
type Person struct {
	Slots [NumBodyParts]int
	Score float64
	Parts int
}

// MeanScore is the record's total confidence averaged over assigned parts.
func (p *Person) MeanScore() float64 {
	if p.Parts == 0 {
		return 0
	}
	return p.Score / float64(p.Parts)
}

// connection is an accepted limb edge between two candidate peaks.
type connection struct {
	a, b  int // global candidate ids
	score float64
}

// limbConnections scores every candidate pair of one limb sequence against
// the part affinity field and greedily selects a one-to-one matching.
func limbConnections(candA, candB []Peak, paf *FieldMap, xCh, yCh, imgH int) []connection {
	if len(candA) == 0 || len(candB) == 0 {
		return nil
	}

	type scored struct {
		i, j  int
		score float64
	}
	var accepted []scored

	for i, a := range candA {
		for j, b := range candB {
			vx := float64(b.X - a.X)
			vy := float64(b.Y - a.Y)
			norm := math.Hypot(vx, vy)
			if norm < 0.001 {
				norm = 0.001
			}
			ux, uy := vx/norm, vy/norm

			var sum float64
			hits := 0
			for s := 0; s < pafSampleCount; s++ {
				t := float64(s) / float64(pafSampleCount-1)
				x := int(math.Round(float64(a.X) + t*vx))
				y := int(math.Round(float64(a.Y) + t*vy))
				if x < 0 || y < 0 || x >= paf.W || y >= paf.H {
					continue
				}
				proj := float64(paf.At(xCh, y, x))*ux + float64(paf.At(yCh, y, x))*uy
				sum += proj
				if proj > pafSampleThreshold {
					hits++
				}
			}

			// Distance prior: segments longer than half the image height
			// are penalized, shorter ones get no bonus.
			prior := math.Min(0.5*float64(imgH)/norm-1, 0)
			score := sum/float64(pafSampleCount) + prior

			if hits > int(0.8*float64(pafSampleCount)) && score > 0 {
				accepted = append(accepted, scored{i: i, j: j, score: score})
			}
		}
	}

	sort.SliceStable(accepted, func(x, y int) bool {
		return accepted[x].score > accepted[y].score
	})

	maxConns := len(candA)
	if len(candB) < maxConns {
		maxConns = len(candB)
	}

	usedA := make(map[int]bool, len(candA))
	usedB := make(map[int]bool, len(candB))
	var conns []connection
	for _, c := range accepted {
		if usedA[c.i] || usedB[c.j] {
			continue
		}
		usedA[c.i] = true
		usedB[c.j] = true
		conns = append(conns, connection{a: candA[c.i].ID, b: candB[c.j].ID, score: c.score})
		if len(conns) >= maxConns {
			break
		}
	}
	return conns
}

// personArena holds person records under construction. Records are merged via
// an index-based union-find instead of rescanning the record list per edge.
type personArena struct {
	records []Person
	parent  []int
	owner   map[int]int // candidate id -> record index at assignment time
}

func newPersonArena() *personArena {
	return &personArena{owner: make(map[int]int)}
}

func (a *personArena) find(i int) int {
	for a.parent[i] != i {
		a.parent[i] = a.parent[a.parent[i]]
		i = a.parent[i]
	}
	return i
}

// recordOf resolves the live record currently owning a candidate peak.
func (a *personArena) recordOf(candID int) (int, bool) {
	idx, ok := a.owner[candID]
	if !ok {
		return 0, false
	}
	return a.find(idx), true
}

func (a *personArena) newRecord() int {
	idx := len(a.records)
	p := Person{}
	for s := range p.Slots {
		p.Slots[s] = -1
	}
	a.records = append(a.records, p)
	a.parent = append(a.parent, idx)
	return idx
}

// disjoint reports whether two records occupy no part slot in common.
func disjoint(p1, p2 *Person) bool {
	for s := 0; s < NumBodyParts; s++ {
		if p1.Slots[s] >= 0 && p2.Slots[s] >= 0 {
			return false
		}
	}
	return true
}

// merge folds record j into record i and returns i as the survivor.
func (a *personArena) merge(i, j int) {
	pi, pj := &a.records[i], &a.records[j]
	for s := 0; s < NumBodyParts; s++ {
		if pj.Slots[s] >= 0 {
			pi.Slots[s] = pj.Slots[s]
		}
	}
	pi.Parts += pj.Parts
	pi.Score += pj.Score
	a.parent[j] = i
}

// AssemblePeople turns per-channel candidate peaks and the averaged part
// affinity field into person records. Limb sequences are processed in
// topology order; ambiguity is resolved by greedy per-limb score ordering
// only, no global optimization is attempted.
func AssemblePeople(allPeaks [][]Peak, paf *FieldMap, imgH int) ([]Peak, []Person) {
	var candidate []Peak
	for _, peaks := range allPeaks {
		candidate = append(candidate, peaks...)
	}

	arena := newPersonArena()

	for k := 0; k < NumLimbs; k++ {
		partA, partB := limbSeq[k][0], limbSeq[k][1]
		conns := limbConnections(allPeaks[partA], allPeaks[partB], paf,
			pafIdx[k][0], pafIdx[k][1], imgH)

		for _, conn := range conns {
			ra, okA := arena.recordOf(conn.a)
			rb, okB := arena.recordOf(conn.b)

			switch {
			case okA && okB && ra == rb:
				// Both ends already in the same record, nothing to add.

			case okA && okB:
				if disjoint(&arena.records[ra], &arena.records[rb]) {
					arena.merge(ra, rb)
					arena.records[ra].Score += conn.score
				} else if arena.records[ra].Slots[partB] < 0 {
					// Overlapping records compete for this edge; extend
					// the A-side record instead of merging.
					arena.records[ra].Slots[partB] = conn.b
					arena.records[ra].Parts++
					arena.records[ra].Score += float64(candidate[conn.b].Score) + conn.score
				}

			case okA:
				rec := &arena.records[ra]
				if rec.Slots[partB] < 0 {
					rec.Slots[partB] = conn.b
					rec.Parts++
					rec.Score += float64(candidate[conn.b].Score) + conn.score
					arena.owner[conn.b] = ra
				}

			case okB:
				rec := &arena.records[rb]
				if rec.Slots[partA] < 0 {
					rec.Slots[partA] = conn.a
					rec.Parts++
					rec.Score += float64(candidate[conn.a].Score) + conn.score
					arena.owner[conn.a] = rb
				}

			case k < numSeedLimbs:
				idx := arena.newRecord()
				rec := &arena.records[idx]
				rec.Slots[partA] = conn.a
				rec.Slots[partB] = conn.b
				rec.Parts = 2
				rec.Score = float64(candidate[conn.a].Score) +
					float64(candidate[conn.b].Score) + conn.score
				arena.owner[conn.a] = idx
				arena.owner[conn.b] = idx
			}
		}
	}

	var people []Person
	for i := range arena.records {
		if arena.find(i) != i {
			continue
		}
		rec := arena.records[i]
		if rec.Parts < minPartCount || rec.MeanScore() < minMeanScore {
			continue
		}
		people = append(people, rec)
	}
	return candidate, people
}
