package reconcile

import (
	"testing"

	"github.com/stagefront/seatpack-sync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func existingPack(id, zone, row, start, end string) *models.SeatPack {
	return &models.SeatPack{
		InternalPackID:  id,
		PerformanceID:   "PERF-1",
		ZoneID:          zone,
		RowLabel:        row,
		StartSeatNumber: start,
		EndSeatNumber:   end,
		PackStatus:      models.PackActive,
	}
}

func candidate(zone, row, start, end string, size int, price float64) CandidatePack {
	return CandidatePack{
		ZoneID:          zone,
		RowLabel:        row,
		StartSeatNumber: start,
		EndSeatNumber:   end,
		PackSize:        size,
		PackPrice:       price,
		TotalPrice:      price * float64(size),
	}
}

func TestCompare_Split(t *testing.T) {
	vanished := []*models.SeatPack{existingPack("P1", "Z1", "A", "1", "4")}
	added := []CandidatePack{
		candidate("Z1", "A", "1", "2", 2, 50),
		candidate("Z1", "A", "3", "4", 2, 50),
	}

	transformations := Compare(vanished, added)

	require.Len(t, transformations, 1)
	tr := transformations[0]
	assert.Equal(t, models.StateSplit, tr.Type)
	assert.Equal(t, []string{"P1"}, tr.ConsumedPackIDs)
	assert.Len(t, tr.Results, 2)
}

func TestCompare_SplitWithGap_IsTransformed(t *testing.T) {
	// Seat 3 disappears entirely: the original range is not fully covered,
	// so this is a generic transformation, not a split.
	vanished := []*models.SeatPack{existingPack("P1", "Z1", "A", "1", "5")}
	added := []CandidatePack{
		candidate("Z1", "A", "1", "2", 2, 50),
		candidate("Z1", "A", "4", "5", 2, 50),
	}

	transformations := Compare(vanished, added)

	require.Len(t, transformations, 1)
	assert.Equal(t, models.StateTransformed, transformations[0].Type)
}

func TestCompare_Merge(t *testing.T) {
	vanished := []*models.SeatPack{
		existingPack("P1", "Z1", "A", "1", "2"),
		existingPack("P2", "Z1", "A", "3", "4"),
	}
	added := []CandidatePack{candidate("Z1", "A", "1", "4", 4, 50)}

	transformations := Compare(vanished, added)

	require.Len(t, transformations, 1)
	tr := transformations[0]
	assert.Equal(t, models.StateMerge, tr.Type)
	assert.ElementsMatch(t, []string{"P1", "P2"}, tr.ConsumedPackIDs)
	require.Len(t, tr.Results, 1)
	assert.Equal(t, "1", tr.Results[0].StartSeatNumber)
	assert.Equal(t, "4", tr.Results[0].EndSeatNumber)
}

func TestCompare_Shrink(t *testing.T) {
	vanished := []*models.SeatPack{existingPack("P1", "Z1", "A", "1", "6")}
	added := []CandidatePack{candidate("Z1", "A", "2", "5", 4, 50)}

	transformations := Compare(vanished, added)

	require.Len(t, transformations, 1)
	assert.Equal(t, models.StateShrink, transformations[0].Type)
	assert.Equal(t, []string{"P1"}, transformations[0].ConsumedPackIDs)
}

func TestCompare_IdenticalRange_IsNotShrink(t *testing.T) {
	// A 1:1 overlap with the exact same range is not a strict subset; it
	// falls back to transformed. In practice the differ never feeds this in
	// because identical signatures are matched before comparison.
	vanished := []*models.SeatPack{existingPack("P1", "Z1", "A", "1", "4")}
	added := []CandidatePack{candidate("Z1", "A", "1", "4", 4, 50)}

	transformations := Compare(vanished, added)

	require.Len(t, transformations, 1)
	assert.Equal(t, models.StateTransformed, transformations[0].Type)
}

func TestCompare_ManyToMany_IsTransformed(t *testing.T) {
	vanished := []*models.SeatPack{
		existingPack("P1", "Z1", "A", "1", "4"),
		existingPack("P2", "Z1", "A", "5", "8"),
	}
	added := []CandidatePack{
		candidate("Z1", "A", "2", "5", 4, 50),
		candidate("Z1", "A", "6", "7", 2, 50),
	}

	transformations := Compare(vanished, added)

	require.Len(t, transformations, 1)
	tr := transformations[0]
	assert.Equal(t, models.StateTransformed, tr.Type)
	assert.ElementsMatch(t, []string{"P1", "P2"}, tr.ConsumedPackIDs)
	assert.Len(t, tr.Results, 2)
}

func TestCompare_CrossRow_NotCorrelated(t *testing.T) {
	vanished := []*models.SeatPack{existingPack("P1", "Z1", "A", "1", "4")}
	added := []CandidatePack{candidate("Z1", "B", "1", "4", 4, 50)}

	transformations := Compare(vanished, added)

	assert.Empty(t, transformations)
}

func TestCompare_CrossZone_NotCorrelated(t *testing.T) {
	vanished := []*models.SeatPack{existingPack("P1", "Z1", "A", "1", "4")}
	added := []CandidatePack{candidate("Z2", "A", "1", "4", 4, 50)}

	transformations := Compare(vanished, added)

	assert.Empty(t, transformations)
}

func TestCompare_NoOverlap_NoTransformation(t *testing.T) {
	vanished := []*models.SeatPack{existingPack("P1", "Z1", "A", "1", "2")}
	added := []CandidatePack{candidate("Z1", "A", "10", "12", 3, 50)}

	transformations := Compare(vanished, added)

	assert.Empty(t, transformations)
}

func TestCompare_IndependentComponentsInSameRow(t *testing.T) {
	// Two disjoint overlap clusters in one row classify independently.
	vanished := []*models.SeatPack{
		existingPack("P1", "Z1", "A", "1", "4"),
		existingPack("P2", "Z1", "A", "20", "25"),
	}
	added := []CandidatePack{
		candidate("Z1", "A", "1", "2", 2, 50),
		candidate("Z1", "A", "3", "4", 2, 50),
		candidate("Z1", "A", "21", "24", 4, 60),
	}

	transformations := Compare(vanished, added)

	require.Len(t, transformations, 2)
	kinds := map[models.PackState]int{}
	for _, tr := range transformations {
		kinds[tr.Type]++
	}
	assert.Equal(t, 1, kinds[models.StateSplit])
	assert.Equal(t, 1, kinds[models.StateShrink])
}

func TestCompare_UnparseableSeatNumbers_NeverCorrelate(t *testing.T) {
	vanished := []*models.SeatPack{existingPack("P1", "Z1", "A", "GA", "GA")}
	added := []CandidatePack{candidate("Z1", "A", "1", "4", 4, 50)}

	transformations := Compare(vanished, added)

	assert.Empty(t, transformations)
}

func TestParseSeatRange(t *testing.T) {
	r, err := parseSeatRange("3", "7")
	require.NoError(t, err)
	assert.Equal(t, seatRange{Lo: 3, Hi: 8}, r)

	_, err = parseSeatRange("7", "3")
	assert.Error(t, err, "inverted range must be rejected")

	_, err = parseSeatRange("A", "4")
	assert.Error(t, err)
}

func TestSeatRangeOverlaps(t *testing.T) {
	a := seatRange{Lo: 1, Hi: 5} // seats 1-4
	assert.True(t, a.overlaps(seatRange{Lo: 4, Hi: 6}))
	assert.False(t, a.overlaps(seatRange{Lo: 5, Hi: 8}), "adjacent ranges do not overlap")
	assert.True(t, seatRange{Lo: 2, Hi: 3}.strictSubsetOf(a))
	assert.False(t, a.strictSubsetOf(a))
}
