// Package chunker splits document text into bounded-size segments
// suitable for embedding.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxChunks caps how many pieces a single document may produce.
const MaxChunks = 10000

// boundarySearchWindow limits how far the word-boundary snap looks.
const boundarySearchWindow = 100

var (
	multiSpace   = regexp.MustCompile(` +`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// wordBoundaries are the runes a chunk may end on without splitting a word.
const wordBoundaries = " \n\t\r.,;:!?()[]{}\"'"

// Piece is one segment produced by SplitOverlap, with rune offsets into
// the source text.
type Piece struct {
	Index int
	Text  string
	Start int
	End   int
}

// Normalize collapses runs of spaces into one, runs of three or more
// newlines into two, and trims surrounding whitespace.
func Normalize(text string) string {
	text = multiSpace.ReplaceAllString(text, " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split divides text into segments of at most maxSize runes, snapping
// to word boundaries where possible. It is deterministic and pure:
// empty text yields no segments, text within maxSize yields exactly one
// segment equal to the input, and a final partial segment is always
// kept.
func Split(text string, maxSize int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if maxSize <= 0 || len(runes) <= maxSize {
		return []string{text}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + maxSize
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		if isWordRune(runes[end-1]) {
			if b := boundaryBackward(runes, end); b > start {
				end = b
			}
		}
		out = append(out, string(runes[start:end]))
		start = end
	}
	return out
}

// SplitOverlap divides text into overlapping segments of at most
// maxSize runes. Adjacent segments share roughly overlap runes;
// both edges snap to word boundaries. Offsets refer to rune positions
// in the input. Fails when the text would exceed MaxChunks pieces.
func SplitOverlap(text string, maxSize, overlap int) ([]Piece, error) {
	if text == "" {
		return nil, nil
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}
	runes := []rune(text)
	if len(runes) > maxSize*MaxChunks {
		return nil, fmt.Errorf("text too large: %d runes, maximum %d", len(runes), maxSize*MaxChunks)
	}

	var pieces []Piece
	start := 0
	index := 0
	for start < len(runes) {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		} else if isWordRune(runes[end-1]) {
			if b := boundaryBackward(runes, end); b > start {
				end = b
			}
		}
		if end <= start {
			end = min(start+1, len(runes))
		}

		if t := strings.TrimSpace(string(runes[start:end])); t != "" {
			if index >= MaxChunks {
				return nil, fmt.Errorf("too many chunks: maximum %d", MaxChunks)
			}
			pieces = append(pieces, Piece{Index: index, Text: t, Start: start, End: end})
			index++
		}
		if end >= len(runes) {
			break
		}

		next := end - overlap
		if next < 0 {
			next = 0
		}
		if next > 0 && next < len(runes) && isWordRune(runes[next-1]) {
			next = boundaryForward(runes, next)
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces, nil
}

// boundaryBackward finds the position just past the nearest word
// boundary strictly before pos, looking back at most
// boundarySearchWindow runes. Returns pos when none is found.
func boundaryBackward(runes []rune, pos int) int {
	stop := max(0, pos-boundarySearchWindow)
	for i := pos - 1; i >= stop; i-- {
		if strings.ContainsRune(wordBoundaries, runes[i]) {
			return i + 1
		}
	}
	return pos
}

// boundaryForward finds the position just past the nearest word
// boundary at or after pos, looking ahead at most boundarySearchWindow
// runes.
func boundaryForward(runes []rune, pos int) int {
	stop := min(len(runes), pos+boundarySearchWindow)
	for i := pos; i < stop; i++ {
		if strings.ContainsRune(wordBoundaries, runes[i]) {
			return i + 1
		}
	}
	return stop
}

func isWordRune(r rune) bool {
	return !strings.ContainsRune(wordBoundaries, r)
}
