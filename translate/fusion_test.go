package translate

import (
	"math"
	"testing"

	"github.com/poiesic/ragquery/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(content string) core.DocumentRef {
	return core.DocumentRef{ID: core.ChunkID("test", content), Source: "test", Content: content}
}

func contents(docs []core.ScoredDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Document.Content
	}
	return out
}

func TestFuse_SingleAppearance(t *testing.T) {
	lists := []core.RankedList{
		{doc("A"), doc("B"), doc("C")},
		{doc("D")},
		{doc("E"), doc("F")},
	}

	fused, err := Fuse(lists, DefaultRRFK)
	require.NoError(t, err)

	scores := make(map[string]float64)
	for _, d := range fused {
		scores[d.Document.Content] = d.Score
	}
	assert.InDelta(t, 1.0/(3+60), scores["C"], 1e-12)
	assert.InDelta(t, 1.0/(1+60), scores["D"], 1e-12)
	assert.InDelta(t, 1.0/(2+60), scores["F"], 1e-12)
}

func TestFuse_TwoAppearances(t *testing.T) {
	lists := []core.RankedList{
		{doc("X"), doc("A")},
		{doc("Y"), doc("Z"), doc("W"), doc("A")},
	}

	fused, err := Fuse(lists, 60)
	require.NoError(t, err)

	for _, d := range fused {
		if d.Document.Content == "A" {
			assert.InDelta(t, 1.0/(2+60)+1.0/(4+60), d.Score, 1e-12)
			assert.Equal(t, 2, d.BestRank)
			return
		}
	}
	t.Fatal("A missing from fused output")
}

func TestFuse_TieBreakByBestRankThenFirstSeen(t *testing.T) {
	lists := []core.RankedList{
		{doc("A"), doc("B"), doc("C")},
		{doc("B"), doc("A"), doc("C")},
	}

	fused, err := Fuse(lists, 60)
	require.NoError(t, err)
	require.Len(t, fused, 3)

	assert.Equal(t, []string{"A", "B", "C"}, contents(fused))
	assert.InDelta(t, 1.0/61+1.0/62, fused[0].Score, 1e-15)
	assert.Equal(t, fused[0].Score, fused[1].Score, "A and B tie exactly")
	assert.InDelta(t, 2.0/63, fused[2].Score, 1e-12)
	assert.Equal(t, 1, fused[0].BestRank)
	assert.Equal(t, 1, fused[1].BestRank)
	assert.Equal(t, 3, fused[2].BestRank)
}

func TestFuse_EqualRankSetsTieAcrossManyLists(t *testing.T) {
	// X at ranks 1, 7, 2 and Y at ranks 7, 2, 1: same rank set, X seen first.
	lists := []core.RankedList{
		{doc("X"), doc("a"), doc("b"), doc("c"), doc("d"), doc("e"), doc("Y")},
		{doc("f"), doc("Y"), doc("g"), doc("h"), doc("i"), doc("j"), doc("X")},
		{doc("Y"), doc("X")},
	}

	fused, err := Fuse(lists, DefaultRRFK)
	require.NoError(t, err)
	require.Len(t, fused, 12)

	assert.Equal(t, "X", fused[0].Document.Content)
	assert.Equal(t, "Y", fused[1].Document.Content)
	assert.Equal(t, fused[0].Score, fused[1].Score, "equal rank sets score identically")
	assert.Equal(t, 1, fused[0].BestRank)
	assert.Equal(t, 1, fused[1].BestRank)

	// Reordering the lists must not change the tie.
	fused, err = Fuse([]core.RankedList{lists[0], lists[2], lists[1]}, DefaultRRFK)
	require.NoError(t, err)
	assert.Equal(t, fused[0].Score, fused[1].Score)
	assert.Equal(t, "X", fused[0].Document.Content)
}

func TestFuse_AccumulatesAcrossLists(t *testing.T) {
	lists := []core.RankedList{
		{doc("Q"), doc("P")},
		{doc("R"), doc("P"), doc("Q")},
		{doc("P")},
	}

	fused, err := Fuse(lists, 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"P", "Q", "R"}, contents(fused))
	assert.InDelta(t, 2.0/62+1.0/61, fused[0].Score, 1e-12)
	assert.Equal(t, 1, fused[0].BestRank)
}

func TestFuse_Empty(t *testing.T) {
	fused, err := Fuse(nil, DefaultRRFK)
	require.NoError(t, err)
	assert.Empty(t, fused)

	fused, err = Fuse([]core.RankedList{{}, {}}, DefaultRRFK)
	require.NoError(t, err)
	assert.Empty(t, fused)
}

func TestFuse_SingleListKeepsOrder(t *testing.T) {
	list := core.RankedList{doc("first"), doc("second"), doc("third"), doc("fourth")}

	fused, err := Fuse([]core.RankedList{list}, DefaultRRFK)
	require.NoError(t, err)
	require.Len(t, fused, len(list))

	for i, d := range fused {
		assert.Equal(t, list[i], d.Document)
		assert.InDelta(t, 1.0/(float64(i+1)+DefaultRRFK), d.Score, 1e-12)
		assert.Equal(t, i+1, d.BestRank)
	}
}

func TestFuse_InvalidK(t *testing.T) {
	for _, k := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Fuse([]core.RankedList{{doc("A")}}, k)
		assert.ErrorIs(t, err, ErrConfiguration, "k=%v", k)
	}
}

func TestFuse_SmallerKFavorsTopRanks(t *testing.T) {
	// A leads one list; B is fourth in both.
	lists := []core.RankedList{
		{doc("A"), doc("x1"), doc("x2"), doc("B")},
		{doc("y1"), doc("y2"), doc("y3"), doc("B")},
	}

	sharp, err := Fuse(lists, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", sharp[0].Document.Content)

	flat, err := Fuse(lists, 60)
	require.NoError(t, err)
	assert.Equal(t, "B", flat[0].Document.Content)
}

func TestFuse_Identity(t *testing.T) {
	a1 := core.DocumentRef{ID: 1, Source: "s1", Content: "same text"}
	a2 := core.DocumentRef{ID: 2, Source: "s2", Content: "same text"}
	lists := []core.RankedList{{a1}, {a2}}

	t.Run("content", func(t *testing.T) {
		fused, err := Fuse(lists, 60)
		require.NoError(t, err)
		require.Len(t, fused, 1)
		assert.Equal(t, a1, fused[0].Document, "first occurrence is reported")
	})

	t.Run("content hash", func(t *testing.T) {
		fused, err := Fuse(lists, 60, WithIdentity(IdentityContentHash))
		require.NoError(t, err)
		assert.Len(t, fused, 1)
	})

	t.Run("document id", func(t *testing.T) {
		fused, err := Fuse(lists, 60, WithIdentity(IdentityDocumentID))
		require.NoError(t, err)
		assert.Len(t, fused, 2)
	})

	t.Run("near duplicates are not merged", func(t *testing.T) {
		fused, err := Fuse([]core.RankedList{{doc("text")}, {doc("text ")}}, 60)
		require.NoError(t, err)
		assert.Len(t, fused, 2)
	})
}
