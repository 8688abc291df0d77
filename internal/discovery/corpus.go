package discovery

import (
	"math"
	"strings"
	"unicode"
)

// BM25+ tuning parameters.
const (
	bm25K1    = 1.2
	bm25B     = 0.75
	bm25Delta = 1.0
)

// stopWords are common English words removed during tokenization so they do
// not dominate description relevance.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {},
}

// Tokenize lowercases a text, splits it on punctuation and whitespace and
// removes stop words. The resulting tokens preserve their original order.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// DescriptionCorpus holds the tokenized description texts of a set of
// candidate devices, keyed by MAC address, and answers BM25+ relevance
// queries against them.
type DescriptionCorpus struct {
	docs     map[string][]string
	docFreq  map[string]int
	totalLen int
}

// NewDescriptionCorpus builds a corpus from the given device descriptions.
// Devices without a MAC address or with an empty description text are
// skipped.
func NewDescriptionCorpus(devices []DeviceDescription) *DescriptionCorpus {
	c := &DescriptionCorpus{
		docs:    make(map[string][]string),
		docFreq: make(map[string]int),
	}
	for i := range devices {
		mac := devices[i].MAC()
		if mac == "" || devices[i].Description == "" {
			continue
		}
		c.add(mac, Tokenize(devices[i].Description))
	}
	return c
}

func (c *DescriptionCorpus) add(mac string, tokens []string) {
	key := strings.ToLower(mac)
	if _, exists := c.docs[key]; exists {
		return
	}
	c.docs[key] = tokens
	c.totalLen += len(tokens)

	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		c.docFreq[t]++
	}
}

// Size returns the number of documents in the corpus.
func (c *DescriptionCorpus) Size() int { return len(c.docs) }

// Document returns the tokenized description of the device with the given
// MAC address, or nil if the corpus holds no document for it.
func (c *DescriptionCorpus) Document(mac string) []string {
	return c.docs[strings.ToLower(mac)]
}

// BM25 returns the BM25+ relevance of the query tokens for the document
// identified by the given MAC address. The inverse document frequency is
// lower-bounded so the result is never negative; a missing document or an
// empty query scores 0.
func (c *DescriptionCorpus) BM25(query []string, mac string) float64 {
	doc := c.Document(mac)
	if len(doc) == 0 || len(query) == 0 || len(c.docs) == 0 {
		return 0
	}

	freq := make(map[string]int, len(doc))
	for _, t := range doc {
		freq[t]++
	}

	n := float64(len(c.docs))
	avgLen := float64(c.totalLen) / n
	docLen := float64(len(doc))

	var score float64
	for _, term := range query {
		tf := float64(freq[term])
		if tf <= 0 {
			continue
		}
		df := float64(c.docFreq[term])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		score += (norm + bm25Delta) * idf
	}
	return score
}
