package segment

import (
	"regexp"
	"strings"
)

// The splitter targets a size band per paragraph: fragments shorter than
// minLength are merged away, paragraphs are kept near 70-80% of maxSize, and
// nothing is allowed past 1.5x maxSize. Too many tiny paragraphs multiply
// API round trips; too few huge ones blow up context, latency and retry cost.
const (
	// substantialThreshold is the minimum accumulated size before a
	// line-based or sentence-based boundary is allowed to split.
	substantialThreshold = 800

	// minSentenceLength filters noise fragments out of sentence regrouping.
	minSentenceLength = 10
)

var (
	horizontalRunRe = regexp.MustCompile(`[ \t]+`)
	newlineRunRe    = regexp.MustCompile(`\n{3,}`)
	whitespaceRe    = regexp.MustCompile(`\s+`)

	// Verse/list markers such as "12. " or "٣) ", including Arabic-Indic digits.
	verseMarkerRe = regexp.MustCompile(`^[0-9\x{0660}-\x{0669}]+[.)]\s+`)

	// Sentence-final punctuation, including the Arabic question mark.
	sentenceEndRe = regexp.MustCompile(`[.!?\x{061F}]\s*$`)

	// Line openers that signal a fresh paragraph: Latin/Cyrillic capitals or
	// Arabic script.
	scriptInitialRe = regexp.MustCompile(`^[A-Z\x{0410}-\x{042F}\x{0600}-\x{06FF}]`)
	lineMarkerRe    = regexp.MustCompile(`^[0-9]+[.)]\s+`)

	sentenceBreakRe = regexp.MustCompile(`[.!?]\s+`)
)

// Split breaks raw extracted text into an ordered list of translation-sized
// paragraphs. It never returns empty strings; blank or whitespace-only input
// yields an empty result rather than an error.
//
// Strategies cascade, each only applied when the previous leaves work to do:
// blank-line splitting, verse grouping, short-fragment merging, line-based
// resplitting, sentence regrouping and finally fixed-size word chunking.
func Split(text string, minLength, maxSize int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if minLength <= 0 {
		minLength = 1
	}
	if maxSize <= 0 {
		maxSize = 2000
	}

	norm := normalize(text)

	// Primary split on blank-line boundaries.
	var cleaned []string
	for _, frag := range strings.Split(norm, "\n\n") {
		frag = collapseSpace(frag)
		if len(frag) >= minLength {
			cleaned = append(cleaned, frag)
		}
	}

	// All fragments fell under minLength; keep the document as one paragraph
	// so non-blank input is never silently dropped.
	if len(cleaned) == 0 {
		whole := collapseSpace(norm)
		if whole == "" {
			return nil
		}
		return finalPass([]string{whole}, minLength, maxSize)
	}

	if len(cleaned) > 1 {
		cleaned = groupVerses(cleaned, minLength)
	}
	if len(cleaned) > 1 {
		cleaned = mergeShort(cleaned, minLength, maxSize)
	}

	// Everything collapsed into a single oversized paragraph: the document
	// has no usable blank-line structure, fall back to weaker signals.
	if len(cleaned) == 1 && len(cleaned[0]) > maxSize {
		large := cleaned[0]
		if byLines := resplitLines(norm, minLength, maxSize); len(byLines) > 1 {
			cleaned = byLines
		} else {
			cleaned = regroupSentences(large, minLength, maxSize)
			if len(cleaned) == 0 || (len(cleaned) == 1 && len(cleaned[0]) > maxSize) {
				cleaned = chunkWords(large, wordChunkTarget(maxSize), minLength)
			}
		}
	}

	return finalPass(cleaned, minLength, maxSize)
}

// normalize collapses horizontal whitespace runs and caps vertical runs at a
// single blank line, so blank-line splitting sees a predictable shape.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalRunRe.ReplaceAllString(text, " ")
	return newlineRunRe.ReplaceAllString(text, "\n\n")
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// groupVerses concatenates consecutive fragments that each open with a short
// numeric marker. Numbered-list and verse texts otherwise explode into
// hundreds of tiny paragraphs.
func groupVerses(paras []string, minLength int) []string {
	var grouped []string
	var verses []string

	flush := func() {
		if len(verses) == 0 {
			return
		}
		joined := strings.Join(verses, " ")
		if len(joined) >= minLength {
			grouped = append(grouped, joined)
		}
		verses = nil
	}

	for _, para := range paras {
		para = strings.TrimSpace(para)
		if verseMarkerRe.MatchString(para) {
			verses = append(verses, para)
			continue
		}
		flush()
		if len(para) >= minLength {
			grouped = append(grouped, para)
		}
	}
	flush()

	if len(grouped) == 0 {
		return paras
	}
	return grouped
}

// mergeShort folds short fragments into the previous paragraph while the
// result stays under 70% of maxSize, bounding under-merging without
// violating the size ceiling.
func mergeShort(paras []string, minLength, maxSize int) []string {
	threshold := 0.7 * float64(maxSize)
	var merged []string
	for _, para := range paras {
		n := len(merged)
		if n > 0 && len(para) < minLength*3 &&
			float64(len(merged[n-1])+1+len(para)) <= threshold {
			merged[n-1] = merged[n-1] + " " + para
		} else {
			merged = append(merged, para)
		}
	}
	return merged
}

// resplitLines re-reads the normalized text line by line and inserts
// paragraph boundaries only where multiple independent signals agree: the
// previous line ends a sentence AND the next line opens like a paragraph AND
// the accumulated paragraph is already substantial. A single signal (for
// example a bare leading digit) must not split, or verse texts over-segment
// into one paragraph per line. Size pressure at 75% of maxSize splits
// regardless of signals.
func resplitLines(text string, minLength, maxSize int) []string {
	var paras []string
	var cur []string
	consecutiveEmpty := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		p := collapseSpace(strings.Join(cur, " "))
		if len(p) >= minLength {
			paras = append(paras, p)
		}
		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			consecutiveEmpty++
			if consecutiveEmpty >= 2 {
				flush()
			}
			continue
		}
		consecutiveEmpty = 0

		startNew := false
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			if len(cur) >= 2 {
				prev = cur[len(cur)-2] + " " + prev
			}
			size := joinedLen(cur)

			endsSentence := sentenceEndRe.MatchString(prev)
			opensParagraph := lineMarkerRe.MatchString(line) || scriptInitialRe.MatchString(line)

			if endsSentence && opensParagraph && size >= substantialThreshold {
				startNew = true
			} else if float64(size) >= 0.75*float64(maxSize) {
				startNew = true
			}
		}

		if startNew {
			flush()
		}
		cur = append(cur, line)
	}
	flush()
	return paras
}

// regroupSentences splits on sentence boundaries and regroups sentences up
// to 75% of maxSize, only breaking once the current paragraph is substantial.
func regroupSentences(text string, minLength, maxSize int) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	target := 0.75 * float64(maxSize)
	var paras []string
	cur := ""

	for _, sentence := range sentences {
		potential := sentence
		if cur != "" {
			potential = cur + " " + sentence
		}

		if cur != "" && len(cur) >= substantialThreshold && float64(len(potential)) > target {
			if len(cur) >= minLength {
				paras = append(paras, cur)
			}
			cur = sentence
		} else {
			cur = potential
		}

		// Hard ceiling: break an overgrown paragraph at its word midpoint.
		if len(cur) > maxSize {
			words := strings.Fields(cur)
			mid := len(words) / 2
			first := strings.Join(words[:mid], " ")
			if len(first) >= minLength {
				paras = append(paras, first)
			}
			cur = strings.Join(words[mid:], " ")
		}
	}
	if len(cur) >= minLength {
		paras = append(paras, cur)
	}
	return paras
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceBreakRe.FindAllStringIndex(text, -1) {
		// Keep the terminator with its sentence.
		s := strings.TrimSpace(text[start : loc[0]+1])
		start = loc[1]
		if len(s) >= minSentenceLength {
			sentences = append(sentences, s)
		}
	}
	if tail := strings.TrimSpace(text[start:]); len(tail) >= minSentenceLength {
		sentences = append(sentences, tail)
	}
	return sentences
}

// chunkWords cuts text into fixed-size word chunks near the target size. A
// sub-minLength tail is folded into the previous chunk.
func chunkWords(text string, target, minLength int) []string {
	var chunks []string
	var cur []string
	size := 0

	for _, word := range strings.Fields(text) {
		if size+len(word)+1 > target && len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, " "))
			cur = []string{word}
			size = len(word)
		} else {
			cur = append(cur, word)
			size += len(word) + 1
		}
	}
	if len(cur) > 0 {
		tail := strings.Join(cur, " ")
		if len(tail) < minLength && len(chunks) > 0 {
			chunks[len(chunks)-1] += " " + tail
		} else {
			chunks = append(chunks, tail)
		}
	}
	return chunks
}

func wordChunkTarget(maxSize int) int {
	return int(0.8 * float64(maxSize))
}

// finalPass enforces the size band on whatever the earlier stages produced:
// anything over 1.5x maxSize is forcibly word-chunked, undersized paragraphs
// fold into their predecessor when the merge stays under maxSize, and short
// paragraphs keep merging toward the 75% soft target.
func finalPass(paras []string, minLength, maxSize int) []string {
	mergeThreshold := 0.75 * float64(maxSize)
	var out []string

	for _, para := range paras {
		para = collapseSpace(para)
		if para == "" {
			continue
		}

		switch {
		case float64(len(para)) > 1.5*float64(maxSize):
			out = append(out, chunkWords(para, wordChunkTarget(maxSize), minLength)...)
		case len(para) < minLength:
			if n := len(out); n > 0 && len(out[n-1])+1+len(para) <= maxSize {
				out[n-1] = out[n-1] + " " + para
			} else {
				out = append(out, para)
			}
		default:
			if n := len(out); n > 0 &&
				float64(len(out[n-1])) < mergeThreshold &&
				len(para) < minLength*4 &&
				len(out[n-1])+1+len(para) <= maxSize {
				out[n-1] = out[n-1] + " " + para
			} else {
				out = append(out, para)
			}
		}
	}
	return out
}

func joinedLen(parts []string) int {
	n := 0
	for i, p := range parts {
		if i > 0 {
			n++
		}
		n += len(p)
	}
	return n
}
