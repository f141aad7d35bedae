package synthesizer

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"multirag/internal/domain"
)

// Extractive answers offline by quoting the context sentences that best
// overlap the question. Term weights come from frequency across the context.
type Extractive struct {
	maxSentences  int
	tokenPattern  *regexp.Regexp
	sentenceSplit *regexp.Regexp
	stopwords     map[string]struct{}
}

// NewExtractive returns a synthesizer quoting at most maxSentences sentences.
func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 2
	}
	return &Extractive{
		maxSentences:  maxSentences,
		tokenPattern:  regexp.MustCompile(`[\p{L}\p{M}\p{N}]+(?:['’][\p{L}\p{M}]+)*`),
		sentenceSplit: regexp.MustCompile(`[^.!?।。]+[.!?।。]*`),
		stopwords:     defaultStopwords(),
	}
}

type scored struct {
	idx   int
	text  string
	score float64
}

func (s *Extractive) Synthesize(ctx context.Context, question string, chunks []domain.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", domain.RetrievalFailed(ErrEmptyContext)
	}
	if err := ctx.Err(); err != nil {
		return "", domain.RetrievalFailed(err)
	}

	var sentences []string
	seen := make(map[string]struct{})
	for _, c := range chunks {
		for _, sent := range s.sentenceSplit.FindAllString(c.Text, -1) {
			sent = strings.TrimSpace(sent)
			if sent == "" {
				continue
			}
			// overlapping chunks repeat sentences
			if _, dup := seen[sent]; dup {
				continue
			}
			seen[sent] = struct{}{}
			sentences = append(sentences, sent)
		}
	}
	if len(sentences) == 0 {
		return "", domain.RetrievalFailed(ErrEmptyContext)
	}

	// Normalized term frequency over the whole context
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	query := make(map[string]struct{})
	for _, tok := range s.tokens(question) {
		query[tok] = struct{}{}
	}

	scores := make([]scored, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		sc := 0.0
		for _, tok := range toks {
			if _, ok := query[tok]; ok {
				// question terms dominate, frequency breaks ties
				sc += 1 + freq[tok]
			}
		}
		if l := float64(len(toks)); l > 0 {
			sc /= math.Sqrt(l)
		}
		scores[i] = scored{idx: i, text: sent, score: sc}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := s.maxSentences
	if n > len(scores) {
		n = len(scores)
	}
	picked := scores[:n]
	// keep only sentences that share a term with the question, but always answer something
	for n > 1 && picked[n-1].score == 0 {
		n--
	}
	picked = picked[:n]
	sort.Slice(picked, func(i, j int) bool { return picked[i].idx < picked[j].idx })

	out := make([]string, len(picked))
	for i, p := range picked {
		out[i] = p.text
	}
	return Clean(strings.Join(out, " ")), nil
}

func (s *Extractive) tokens(text string) []string {
	raw := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := s.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "where", "when", "why", "how", "does", "do", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
