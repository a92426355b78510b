package pose

import "testing"

// horizontalPAF returns an affinity field whose x components are 1 on the
// channels of the given limbs, so any pair aligned along the x axis scores a
// perfect connection.
func horizontalPAF(w, h int, limbs ...int) *FieldMap {
	paf := NewFieldMap(w, h, 2*NumLimbs)
	for _, k := range limbs {
		ch := paf.Channel(pafIdx[k][0])
		for i := range ch {
			ch[i] = 1.0
		}
	}
	return paf
}

func addPeak(allPeaks [][]Peak, part, x, y int) {
	allPeaks[part] = append(allPeaks[part], Peak{X: x, Y: y, Score: 0.9})
}

// assignGlobalIDs numbers all peaks sequentially in channel-major order, the
// same way the extractor does, so candidate indexing by id stays valid.
func assignGlobalIDs(allPeaks [][]Peak) {
	id := 0
	for ch := range allPeaks {
		for i := range allPeaks[ch] {
			allPeaks[ch][i].ID = id
			id++
		}
	}
}

func assertUniqueSlotIDs(t *testing.T, p Person) {
	t.Helper()
	seen := make(map[int]int)
	for slot, id := range p.Slots {
		if id < 0 {
			continue
		}
		if prev, ok := seen[id]; ok {
			t.Errorf("candidate %d assigned to slots %d and %d", id, prev, slot)
		}
		seen[id] = slot
	}
}

func TestAssembleSinglePerson(t *testing.T) {
	// Neck, shoulder, elbow and wrist on one horizontal line, linked by
	// limbs 0, 2 and 3, assemble into one person.
	allPeaks := make([][]Peak, NumBodyParts)
	addPeak(allPeaks, PartNeck, 10, 20)
	addPeak(allPeaks, PartRShoulder, 30, 20)
	addPeak(allPeaks, PartRElbow, 50, 20)
	addPeak(allPeaks, PartRWrist, 70, 20)
	assignGlobalIDs(allPeaks)
	paf := horizontalPAF(100, 100, 0, 2, 3)

	candidate, people := AssemblePeople(allPeaks, paf, 100)

	if len(candidate) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(candidate))
	}
	if len(people) != 1 {
		t.Fatalf("expected 1 person, got %d", len(people))
	}
	if people[0].Parts != 4 {
		t.Errorf("expected 4 assigned parts, got %d", people[0].Parts)
	}
	for _, part := range []int{PartNeck, PartRShoulder, PartRElbow, PartRWrist} {
		if people[0].Slots[part] < 0 {
			t.Errorf("part %d not assigned: %+v", part, people[0].Slots)
		}
	}
	assertUniqueSlotIDs(t, people[0])
}

func TestAssembleTwoPeople(t *testing.T) {
	allPeaks := make([][]Peak, NumBodyParts)
	parts := []int{PartNeck, PartRShoulder, PartRElbow, PartRWrist}
	for i, part := range parts {
		addPeak(allPeaks, part, 10+i*20, 20)
		addPeak(allPeaks, part, 10+i*20, 80)
	}
	assignGlobalIDs(allPeaks)
	paf := horizontalPAF(100, 120, 0, 2, 3)

	_, people := AssemblePeople(allPeaks, paf, 120)

	if len(people) != 2 {
		t.Fatalf("expected 2 people, got %d", len(people))
	}
	for i, p := range people {
		if p.Parts != 4 {
			t.Errorf("person %d has %d parts, expected 4", i, p.Parts)
		}
		// One-to-one matching keeps each chain on its own row.
		y := -1
		for _, idx := range p.Slots {
			if idx < 0 {
				continue
			}
			cand := peakByID(t, allPeaks, idx)
			if y == -1 {
				y = cand.Y
			} else if cand.Y != y {
				t.Errorf("person %d mixes rows y=%d and y=%d", i, y, cand.Y)
			}
		}
	}
}

func TestAssembleFiltersSmallRecords(t *testing.T) {
	// Only limbs 0 and 2 are present: 3 parts is below the minimum.
	allPeaks := make([][]Peak, NumBodyParts)
	addPeak(allPeaks, PartNeck, 10, 20)
	addPeak(allPeaks, PartRShoulder, 30, 20)
	addPeak(allPeaks, PartRElbow, 50, 20)
	assignGlobalIDs(allPeaks)
	paf := horizontalPAF(100, 100, 0, 2)

	_, people := AssemblePeople(allPeaks, paf, 100)
	if len(people) != 0 {
		t.Fatalf("expected 3-part record to be filtered, got %d people", len(people))
	}
}

func TestAssembleNoAffinity(t *testing.T) {
	allPeaks := make([][]Peak, NumBodyParts)
	addPeak(allPeaks, PartNeck, 10, 20)
	addPeak(allPeaks, PartRShoulder, 30, 20)
	addPeak(allPeaks, PartRElbow, 50, 20)
	addPeak(allPeaks, PartRWrist, 70, 20)
	assignGlobalIDs(allPeaks)
	paf := NewFieldMap(100, 100, 2*NumLimbs)

	_, people := AssemblePeople(allPeaks, paf, 100)
	if len(people) != 0 {
		t.Fatalf("expected no people without affinity support, got %d", len(people))
	}
}

func TestAssembleMergesBridgedChains(t *testing.T) {
	// Limb 2 seeds an arm record and limbs 13/14 grow a head record; only
	// limb 17 (shoulder to ear) connects the two. The merge must fold the
	// records into one without doubling up any slot.
	allPeaks := make([][]Peak, NumBodyParts)
	addPeak(allPeaks, PartRShoulder, 10, 20)
	addPeak(allPeaks, PartRElbow, 30, 20)
	addPeak(allPeaks, PartNose, 50, 20)
	addPeak(allPeaks, PartREye, 70, 20)
	addPeak(allPeaks, PartREar, 90, 20)
	assignGlobalIDs(allPeaks)
	paf := horizontalPAF(120, 100, 2, 13, 14, 17)

	_, people := AssemblePeople(allPeaks, paf, 100)

	if len(people) != 1 {
		t.Fatalf("expected bridged chains to merge into 1 person, got %d", len(people))
	}
	if people[0].Parts != 5 {
		t.Errorf("merged person has %d parts, expected 5", people[0].Parts)
	}
	for _, part := range []int{PartNose, PartRShoulder, PartRElbow, PartREye, PartREar} {
		if people[0].Slots[part] < 0 {
			t.Errorf("part %d lost in merge: %+v", part, people[0].Slots)
		}
	}
	assertUniqueSlotIDs(t, people[0])
}

func TestAssembleExtendsOverlappingRecords(t *testing.T) {
	// Two records each own a neck, so when limb 17 links them they cannot
	// merge; the connection extends the shoulder-side record instead.
	allPeaks := make([][]Peak, NumBodyParts)
	addPeak(allPeaks, PartNeck, 10, 20)
	addPeak(allPeaks, PartNeck, 10, 80)
	addPeak(allPeaks, PartRShoulder, 30, 20)
	addPeak(allPeaks, PartRElbow, 50, 20)
	addPeak(allPeaks, PartLShoulder, 30, 80)
	addPeak(allPeaks, PartNose, 50, 80)
	addPeak(allPeaks, PartREye, 70, 80)
	addPeak(allPeaks, PartREar, 90, 80)
	assignGlobalIDs(allPeaks)
	paf := horizontalPAF(120, 120, 0, 1, 2, 12, 13, 14, 17)

	_, people := AssemblePeople(allPeaks, paf, 120)

	if len(people) != 2 {
		t.Fatalf("expected 2 people, got %d", len(people))
	}
	var withRShoulder, withLShoulder *Person
	for i := range people {
		if people[i].Slots[PartRShoulder] >= 0 {
			withRShoulder = &people[i]
		}
		if people[i].Slots[PartLShoulder] >= 0 {
			withLShoulder = &people[i]
		}
	}
	if withRShoulder == nil || withLShoulder == nil {
		t.Fatal("shoulder records missing")
	}
	if withRShoulder.Slots[PartNeck] == withLShoulder.Slots[PartNeck] {
		t.Error("distinct records share one neck candidate")
	}
	// The bridging edge attaches the ear to the arm record without merging.
	if withRShoulder.Slots[PartREar] < 0 {
		t.Errorf("arm record not extended with ear: %+v", withRShoulder.Slots)
	}
	if withRShoulder.Parts != 4 {
		t.Errorf("arm record has %d parts, expected 4", withRShoulder.Parts)
	}
	if withLShoulder.Parts != 5 {
		t.Errorf("head record has %d parts, expected 5", withLShoulder.Parts)
	}
	assertUniqueSlotIDs(t, *withRShoulder)
	assertUniqueSlotIDs(t, *withLShoulder)
}

func peakByID(t *testing.T, allPeaks [][]Peak, id int) Peak {
	t.Helper()
	for _, peaks := range allPeaks {
		for _, p := range peaks {
			if p.ID == id {
				return p
			}
		}
	}
	t.Fatalf("no candidate with id %d", id)
	return Peak{}
}
