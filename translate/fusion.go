package translate

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/poiesic/ragquery/core"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant used when none is given.
const DefaultRRFK = 60.0

// Identity decides when two retrieved fragments are the same document.
type Identity int

const (
	// IdentityContent matches fragments by exact content equality.
	// Fragments differing only in whitespace or formatting are not merged.
	IdentityContent Identity = iota

	// IdentityContentHash matches fragments by the BLAKE2b hash of their content.
	IdentityContentHash

	// IdentityDocumentID matches fragments by DocumentRef.ID as assigned by the index.
	IdentityDocumentID
)

type fuseConfig struct {
	identity Identity
}

// FuseOption configures Fuse.
type FuseOption func(*fuseConfig)

// WithIdentity selects how fragments are matched across lists.
// Default is IdentityContent.
func WithIdentity(identity Identity) FuseOption {
	return func(c *fuseConfig) {
		c.identity = identity
	}
}

type fusedEntry struct {
	doc   core.DocumentRef
	ranks []int
	score float64
	order int
}

// Contributions are summed in ascending rank order so documents with the same
// rank multiset get bit-identical scores regardless of list order.
func (e *fusedEntry) finish(k float64) {
	slices.Sort(e.ranks)
	for _, rank := range e.ranks {
		e.score += 1 / (float64(rank) + k)
	}
}

// Fuse merges ranked lists with Reciprocal Rank Fusion.
//
// A document at 1-based rank r in a list contributes 1/(r+k); its score is
// the sum over every list it appears in. Output is sorted by score
// descending, then by best rank across lists, then by the order in which the
// document was first encountered (list order, then position). The first
// occurrence of a document is the one reported.
//
// Empty input yields empty output. k must be positive and finite.
func Fuse(lists []core.RankedList, k float64, opts ...FuseOption) ([]core.ScoredDocument, error) {
	if !(k > 0) || math.IsInf(k, 1) {
		return nil, fmt.Errorf("%w: rrf k must be positive and finite, got %v", ErrConfiguration, k)
	}

	cfg := fuseConfig{identity: IdentityContent}
	for _, opt := range opts {
		opt(&cfg)
	}
	key := identityKey(cfg.identity)

	entries := make(map[any]*fusedEntry)
	var ordered []*fusedEntry
	for _, list := range lists {
		for pos, doc := range list {
			rank := pos + 1
			id := key(doc)
			entry, ok := entries[id]
			if !ok {
				entry = &fusedEntry{doc: doc, order: len(ordered)}
				entries[id] = entry
				ordered = append(ordered, entry)
			}
			entry.ranks = append(entry.ranks, rank)
		}
	}
	for _, entry := range ordered {
		entry.finish(k)
	}

	slices.SortFunc(ordered, func(a, b *fusedEntry) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ranks[0], b.ranks[0]); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	results := make([]core.ScoredDocument, len(ordered))
	for i, entry := range ordered {
		results[i] = core.ScoredDocument{
			Document: entry.doc,
			Score:    entry.score,
			BestRank: entry.ranks[0],
		}
	}
	return results, nil
}

func identityKey(identity Identity) func(core.DocumentRef) any {
	switch identity {
	case IdentityContentHash:
		return func(d core.DocumentRef) any { return core.IDFromContent(d.Content) }
	case IdentityDocumentID:
		return func(d core.DocumentRef) any { return d.ID }
	default:
		return func(d core.DocumentRef) any { return d.Content }
	}
}
