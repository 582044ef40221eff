// Package textvec builds TF-IDF vectors from free-text descriptions and compares them.
//
// A single corpus-free IDF policy is used everywhere: distinctive words weigh 2.5,
// common descriptive words 1.0 and everything else 1.5. Comparisons and cached
// per-item embeddings therefore agree on term weights.
package textvec

import (
	"regexp"
	"sort"
	"strings"

	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/vecmath"
)

const (
	idfDistinctive = 2.5
	idfCommon      = 1.0
	idfDefault     = 1.5
)

var nonWord = regexp.MustCompile(`[^\w\s]+`)

// Vectorizer turns text into weighted term vectors
type Vectorizer struct{}

// New creates a vectorizer
func New() *Vectorizer {
	return &Vectorizer{}
}

// Preprocess lowercases, strips punctuation and drops short tokens and stop words
func (v *Vectorizer) Preprocess(text string) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(cleaned)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 1 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// TermFrequency returns count(token)/len(tokens) for each token
func (v *Vectorizer) TermFrequency(tokens []string) map[string]float64 {
	tf := make(map[string]float64)
	if len(tokens) == 0 {
		return tf
	}
	for _, t := range tokens {
		tf[t]++
	}
	total := float64(len(tokens))
	for t, c := range tf {
		tf[t] = c / total
	}
	return tf
}

// IDF returns the heuristic inverse document frequency for a term
func (v *Vectorizer) IDF(term string) float64 {
	if _, ok := distinctiveWords[term]; ok {
		return idfDistinctive
	}
	if _, ok := commonWords[term]; ok {
		return idfCommon
	}
	return idfDefault
}

// Similarity returns the TF-IDF cosine similarity of two texts as 0-100.
// Returns 0 if either text has no meaningful tokens.
func (v *Vectorizer) Similarity(text1, text2 string) int {
	tokens1 := v.Preprocess(text1)
	tokens2 := v.Preprocess(text2)
	if len(tokens1) == 0 || len(tokens2) == 0 {
		return 0
	}

	tf1 := v.TermFrequency(tokens1)
	tf2 := v.TermFrequency(tokens2)
	vocab := unionVocabulary(tf1, tf2)

	vec1 := make([]float64, len(vocab))
	vec2 := make([]float64, len(vocab))
	for i, term := range vocab {
		idf := v.IDF(term)
		vec1[i] = tf1[term] * idf
		vec2[i] = tf2[term] * idf
	}

	return vecmath.Percent(vecmath.Cosine(vec1, vec2))
}

// Embed builds an L2-normalised TF-IDF vector over the text's own sorted vocabulary
func (v *Vectorizer) Embed(text string) model.TextEmbedding {
	tf := v.TermFrequency(v.Preprocess(text))
	vocab := unionVocabulary(tf)

	vec := make([]float64, len(vocab))
	for i, term := range vocab {
		vec[i] = tf[term] * v.IDF(term)
	}

	return model.TextEmbedding{
		Text:       text,
		Vector:     vecmath.Normalize(vec),
		Vocabulary: vocab,
	}
}

func unionVocabulary(tfs ...map[string]float64) []string {
	seen := make(map[string]struct{})
	for _, tf := range tfs {
		for term := range tf {
			seen[term] = struct{}{}
		}
	}
	vocab := make([]string, 0, len(seen))
	for term := range seen {
		vocab = append(vocab, term)
	}
	sort.Strings(vocab)
	return vocab
}
