package common

import (
	"fmt"
	"sort"
	"time"
)

// Modality identifies which retrieval path produced a piece of evidence.
type Modality string

const (
	ModalityVector Modality = "vector"
	ModalityGraph  Modality = "graph"
)

// Intent classifies what a sub-intent is asking for. Relational intents
// additionally trigger graph traversal during fan-out.
type Intent string

const (
	IntentFactual    Intent = "factual"
	IntentRelational Intent = "relational"
	IntentSummary    Intent = "summary"
)

// Filters restricts retrieval to a time range and/or a set of source
// documents. The zero value means unrestricted.
type Filters struct {
	NotBefore *time.Time `json:"not_before,omitempty"`
	NotAfter  *time.Time `json:"not_after,omitempty"`
	Sources   []string   `json:"sources,omitempty"`
}

// SubIntent is one expanded search direction of a planned query,
// carrying its own embedding.
type SubIntent struct {
	Text      string    `json:"text"`
	Intent    Intent    `json:"intent"`
	Embedding []float32 `json:"-"`
}

// Query is the planned form of a natural-language question. It is
// immutable once planning returns it.
type Query struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	Filters    Filters     `json:"filters"`
	SubIntents []SubIntent `json:"sub_intents"`
}

// Hop is one step of a graph-origin provenance chain.
type Hop struct {
	EntityID string `json:"entity_id"`
	Relation string `json:"relation"`
}

// ChunkRef points at the character span of a document chunk backing a
// vector-origin fragment.
type ChunkRef struct {
	DocumentID string `json:"document_id"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// Provenance is the trail justifying a fragment. Exactly one of Hops or
// Chunk is set, depending on the fragment's modality.
type Provenance struct {
	Hops  []Hop     `json:"hops,omitempty"`
	Chunk *ChunkRef `json:"chunk,omitempty"`
}

// Length returns the number of steps in the chain. Vector provenance
// counts as a single step (direct document evidence).
func (p Provenance) Length() int {
	if p.Chunk != nil {
		return 1
	}
	return len(p.Hops)
}

// CitationRef returns the identifier that should appear in a citation
// list for this chain: the document for vector evidence, the final
// entity for graph evidence.
func (p Provenance) CitationRef() string {
	if p.Chunk != nil {
		return p.Chunk.DocumentID
	}
	if len(p.Hops) > 0 {
		return p.Hops[len(p.Hops)-1].EntityID
	}
	return ""
}

// Fragment is a single unit of retrieved evidence from either modality.
type Fragment struct {
	ID        string     `json:"id"`
	Modality  Modality   `json:"modality"`
	SubIntent int        `json:"sub_intent"`
	Text      string     `json:"text"`
	Score     float64    `json:"score"`
	Prov      Provenance `json:"provenance"`

	// Source reference, used for deduplication. Vector fragments set
	// Document plus the chunk span in Prov; graph fragments set the
	// entity pair and relation.
	Document string    `json:"document,omitempty"`
	Entities [2]string `json:"entities,omitempty"`
	Relation string    `json:"relation,omitempty"`
}

// SourceKey returns the normalized source reference used as the
// deduplication key. Entity pairs are order-normalized so that the two
// directions of the same relation collapse into one key.
func (f Fragment) SourceKey() string {
	if f.Modality == ModalityVector {
		start, end := 0, 0
		if f.Prov.Chunk != nil {
			start, end = f.Prov.Chunk.Start, f.Prov.Chunk.End
		}
		return fmt.Sprintf("doc:%s:%d-%d", f.Document, start, end)
	}
	a, b := f.Entities[0], f.Entities[1]
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("rel:%s:%s:%s", a, f.Relation, b)
}

// FusedResult is a deduplicated cluster of fragments sharing a source
// key, with a combined cross-modality score. It always retains at least
// one provenance chain.
type FusedResult struct {
	Key         string       `json:"key"`
	Score       float64      `json:"score"`
	Modality    Modality     `json:"modality"`
	Text        string       `json:"text"`
	FragmentIDs []string     `json:"fragment_ids"`
	Provenance  []Provenance `json:"provenance"`
}

// CoverageGap records a non-fatal shortfall for one sub-intent during
// fan-out. Gaps are informational and surface in response metadata.
type CoverageGap struct {
	SubIntent int      `json:"sub_intent"`
	Modality  Modality `json:"modality"`
	Reason    string   `json:"reason"`
}

// Node is a typed knowledge-graph entity.
type Node struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Edge is a typed, directional relationship between two nodes. An edge
// is only committed after both endpoint nodes exist.
type Edge struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Relation string            `json:"relation"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// VectorRecord is one embedding with a back-reference to the document
// or entity it was derived from.
type VectorRecord struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding"`
	RefID     string            `json:"ref_id"`
	Text      string            `json:"text,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// BatchState tracks an ingestion batch through its lifecycle.
type BatchState string

const (
	BatchPending       BatchState = "pending"
	BatchGraphApplied  BatchState = "graph_applied"
	BatchVectorApplied BatchState = "vector_applied"
	BatchCommitted     BatchState = "committed"
	BatchFailed        BatchState = "failed"
)

// Batch is an atomic unit of graph and vector writes. Key is the
// caller-supplied idempotency key; retries must reuse it.
type Batch struct {
	Key     string         `json:"key"`
	Nodes   []Node         `json:"nodes"`
	Edges   []Edge         `json:"edges"`
	Vectors []VectorRecord `json:"vectors"`
}

// EntityKeys returns the sorted, deduplicated set of identifiers the
// batch touches. Batches with intersecting key sets are serialized.
func (b Batch) EntityKeys() []string {
	set := make(map[string]struct{})
	for _, n := range b.Nodes {
		set[n.ID] = struct{}{}
	}
	for _, e := range b.Edges {
		set[e.From] = struct{}{}
		set[e.To] = struct{}{}
	}
	for _, v := range b.Vectors {
		set[v.ID] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Citation is one entry of an answer's citation list, numbered in order
// of first use.
type Citation struct {
	Ordinal int    `json:"ordinal"`
	Ref     string `json:"ref"`
}

// EvidenceItem is one ranked, cited piece of evidence in an answer.
type EvidenceItem struct {
	Text       string       `json:"text"`
	Score      float64      `json:"score"`
	Modality   Modality     `json:"modality"`
	Citations  []int        `json:"citations"`
	Provenance []Provenance `json:"provenance"`
}

// AnswerPayload is the structured output of the synthesis assembler.
// It is the only shape that crosses to the language-generation
// capability; raw fragments never do.
type AnswerPayload struct {
	QueryID   string         `json:"query_id"`
	Question  string         `json:"question"`
	Evidence  []EvidenceItem `json:"evidence"`
	Citations []Citation     `json:"citations"`
	Gaps      []CoverageGap  `json:"gaps,omitempty"`
}
