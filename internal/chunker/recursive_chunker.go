package chunker

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"multirag/internal/domain"
)

const (
	DefaultMaxChars     = 300
	DefaultOverlapChars = 50
)

// separatorLevels are tried from the largest boundary to the smallest.
// A piece that still does not fit after the last level is cut by rune count.
var separatorLevels = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? ", "。"},
	{" "},
}

// RecursiveChunker splits text on the largest boundary that keeps pieces under
// maxChars and merges pieces into overlapping chunks. Sizes are counted in runes.
type RecursiveChunker struct {
	maxChars     int
	overlapChars int
}

func NewRecursiveChunker(maxChars, overlapChars int) *RecursiveChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 4
	}
	return &RecursiveChunker{maxChars: maxChars, overlapChars: overlapChars}
}

type piece struct {
	text  string
	start int
	size  int
}

func (p piece) end() int { return p.start + p.size }

func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	var pieces []piece
	if size := utf8.RuneCountInString(document.Content); size <= c.maxChars {
		pieces = []piece{{text: document.Content, size: size}}
	} else {
		pieces = c.atomize(document.Content, 0, 0)
	}
	windows := c.merge(pieces)
	pages := pageStarts(document)

	chunks := make([]domain.Chunk, 0, len(windows))
	for _, w := range windows {
		text := strings.TrimSpace(w.text)
		if text == "" {
			continue
		}
		lead := w.size - utf8.RuneCountInString(strings.TrimLeftFunc(w.text, unicode.IsSpace))
		offset := w.start + lead
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Text:       text,
			Index:      idx,
			Span: &domain.Span{
				StartPage: pageAt(pages, offset),
				EndPage:   pageAt(pages, offset+utf8.RuneCountInString(text)-1),
				Offset:    offset,
			},
		})
	}
	return chunks, nil
}

// atomize breaks text into pieces no longer than maxChars-overlapChars, which
// leaves room for an overlap tail in front of any piece. Pieces keep their
// trailing separator so that concatenating them reproduces text exactly.
func (c *RecursiveChunker) atomize(text string, start, level int) []piece {
	limit := c.maxChars - c.overlapChars
	size := utf8.RuneCountInString(text)
	if size <= limit {
		return []piece{{text: text, start: start, size: size}}
	}
	if level >= len(separatorLevels) {
		return hardSplit(text, start, limit)
	}
	parts := splitKeep(text, separatorLevels[level])
	if len(parts) == 1 {
		return c.atomize(text, start, level+1)
	}
	var out []piece
	offset := start
	for _, part := range parts {
		out = append(out, c.atomize(part, offset, level+1)...)
		offset += utf8.RuneCountInString(part)
	}
	return out
}

// merge packs pieces greedily into windows of at most maxChars. Each new window
// starts with the trailing pieces of the previous one that fit the overlap budget,
// or with a rune tail of it when no whole piece fits.
func (c *RecursiveChunker) merge(pieces []piece) []piece {
	var (
		out   []piece
		cur   []piece
		total int
	)
	for _, p := range pieces {
		if total+p.size > c.maxChars && len(cur) > 0 {
			w := join(cur)
			out = append(out, w)
			for len(cur) > 0 && (total > c.overlapChars || total+p.size > c.maxChars) {
				total -= cur[0].size
				cur = cur[1:]
			}
			if len(cur) > 0 && strings.TrimSpace(join(cur).text) == "" {
				cur, total = nil, 0
			}
			if len(cur) == 0 {
				if tail, ok := tailPiece(w, c.overlapChars, c.maxChars-p.size); ok {
					cur, total = []piece{tail}, tail.size
				}
			}
		}
		cur = append(cur, p)
		total += p.size
	}
	if len(cur) > 0 {
		out = append(out, join(cur))
	}
	return out
}

func join(pieces []piece) piece {
	var b strings.Builder
	size := 0
	for _, p := range pieces {
		b.WriteString(p.text)
		size += p.size
	}
	return piece{text: b.String(), start: pieces[0].start, size: size}
}

// tailPiece returns the last runes of w, at most min(overlap, room), snapped to a word start.
// Snapping never discards the only word in the tail.
func tailPiece(w piece, overlap, room int) (piece, bool) {
	budget := overlap
	if room < budget {
		budget = room
	}
	if budget <= 0 {
		return piece{}, false
	}
	runes := []rune(w.text)
	if budget > len(runes) {
		budget = len(runes)
	}
	tail := runes[len(runes)-budget:]
	start := w.end() - budget
	if strings.TrimSpace(string(tail)) == "" {
		return rawTail(w, budget)
	}
	for i, r := range tail {
		if unicode.IsSpace(r) {
			if rest := tail[i+1:]; strings.TrimSpace(string(rest)) != "" {
				tail = rest
				start += i + 1
			}
			break
		}
	}
	return piece{text: string(tail), start: start, size: len(tail)}, true
}

// rawTail serves windows ending in a whitespace run longer than the budget:
// it keeps the last budget-1 runes before the run plus one space.
func rawTail(w piece, budget int) (piece, bool) {
	body := []rune(strings.TrimRightFunc(w.text, unicode.IsSpace))
	n := budget - 1
	if n <= 0 || len(body) == 0 {
		return piece{}, false
	}
	if n > len(body) {
		n = len(body)
	}
	return piece{text: string(body[len(body)-n:]) + " ", start: w.start + len(body) - n, size: n + 1}, true
}

// splitKeep splits text after every occurrence of any separator.
func splitKeep(text string, seps []string) []string {
	var parts []string
	for text != "" {
		cut := -1
		for _, sep := range seps {
			if i := strings.Index(text, sep); i >= 0 {
				if end := i + len(sep); cut < 0 || end < cut {
					cut = end
				}
			}
		}
		if cut < 0 {
			parts = append(parts, text)
			break
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return parts
}

func hardSplit(text string, start, size int) []piece {
	runes := []rune(text)
	var out []piece
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, piece{text: string(runes[i:end]), start: start + i, size: end - i})
	}
	return out
}

// pageStarts returns the rune offset at which each page begins in Content.
// Plain documents have no pages.
func pageStarts(doc domain.Document) []int {
	if doc.Format != domain.FormatPaginated || len(doc.Pages) == 0 {
		return nil
	}
	starts := make([]int, len(doc.Pages))
	offset := 0
	sepLen := utf8.RuneCountInString(domain.PageSeparator)
	for i, p := range doc.Pages {
		starts[i] = offset
		offset += utf8.RuneCountInString(p.Text) + sepLen
	}
	return starts
}

// pageAt maps a rune offset to a 1-based page number, or 0 without pages.
func pageAt(starts []int, offset int) int {
	if len(starts) == 0 {
		return 0
	}
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
	if i == 0 {
		return 1
	}
	return i
}
