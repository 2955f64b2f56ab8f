// Package steps incrementally extracts structured reasoning steps from an
// unbounded token stream. A step is emitted exactly once, in order, and only
// after its terminator (the next marker or stream end) has been observed, so
// a step whose body may still grow is held back.
package steps

import (
	"regexp"
	"strings"

	"solverd/pkg/types"
)

var (
	stepRe  = regexp.MustCompile(`(?m)^[ \t]*Step[ \t]+(\d+)[ \t]*[:.)][ \t]*(.*)$`)
	finalRe = regexp.MustCompile(`(?mi)^[ \t]*(?:Final Answer|Answer)[ \t]*:[ \t]*(.*)$`)
)

// Parser scans an append-only buffer for the step-delimiter grammar. The scan
// position only moves forward, so each chunk costs O(len(chunk)) amortized.
type Parser struct {
	buf       strings.Builder
	scan      int
	emitted   int
	inStep    bool
	title     string
	bodyStart int
	finalSeen bool
	sawMarker bool
}

func NewParser() *Parser { return &Parser{} }

// Append adds a chunk to the buffer and returns any steps confirmed by it.
// Returned steps are immutable and numbered 1,2,3,... in emission order,
// regardless of the literal numbers in the text.
func (p *Parser) Append(chunk string) []types.ReasoningStep {
	p.buf.WriteString(chunk)
	text := p.buf.String()
	var out []types.ReasoningStep
	for !p.finalSeen {
		sm := stepRe.FindStringSubmatchIndex(text[p.scan:])
		fm := finalRe.FindStringIndex(text[p.scan:])

		// Pick the earliest marker of either kind.
		useFinal := false
		var at int
		switch {
		case sm == nil && fm == nil:
			// No marker in the scanned region. Lines fully seen without a
			// marker can be skipped next time; an incomplete trailing line
			// cannot, since a marker may still be forming on it.
			p.scan = lastLineStart(text, p.scan)
			return out
		case sm == nil:
			useFinal, at = true, p.scan+fm[0]
		case fm == nil:
			at = p.scan + sm[0]
		case fm[0] < sm[0]:
			useFinal, at = true, p.scan+fm[0]
		default:
			at = p.scan + sm[0]
		}

		if p.inStep {
			out = append(out, p.emit(text[p.bodyStart:at], true))
			p.inStep = false
		}
		if useFinal {
			p.finalSeen = true
			p.scan = at
			return out
		}

		// Step marker. If its line has not been terminated yet the label may
		// still be streaming in; hold position and wait for more text.
		end := p.scan + sm[1]
		if end == len(text) {
			p.scan = at
			return out
		}
		p.sawMarker = true
		p.title = strings.TrimSpace(text[p.scan+sm[4] : p.scan+sm[5]])
		p.bodyStart = end + 1 // past the marker line's newline
		p.inStep = true
		p.scan = p.bodyStart
	}
	return out
}

// Flush emits the trailing unterminated step, if any. complete=false marks it
// as cut short (stream error); complete=true means the stream ended naturally.
func (p *Parser) Flush(complete bool) []types.ReasoningStep {
	text := p.buf.String()
	if !p.inStep {
		// A marker whose line never got terminated still counts at end of stream.
		if !p.finalSeen && p.scan < len(text) {
			if sm := stepRe.FindStringSubmatchIndex(text[p.scan:]); sm != nil {
				p.sawMarker = true
				p.title = strings.TrimSpace(text[p.scan+sm[4] : p.scan+sm[5]])
				p.bodyStart = len(text)
				p.inStep = true
			}
		}
		if !p.inStep {
			return nil
		}
	}
	p.inStep = false
	p.scan = len(text)
	return []types.ReasoningStep{p.emit(text[min(p.bodyStart, len(text)):], complete)}
}

// Result returns the final answer text: the text after a final-answer marker
// when one appeared, otherwise the last non-empty line; when no step markers
// ever appeared, the whole buffer. Zero markers is not an error.
func (p *Parser) Result() string {
	text := p.buf.String()
	if m := finalRe.FindStringSubmatchIndex(text); m != nil {
		return strings.TrimSpace(text[m[2]:m[3]])
	}
	if !p.sawMarker {
		return strings.TrimSpace(text)
	}
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}

// Emitted reports the number of steps emitted so far.
func (p *Parser) Emitted() int { return p.emitted }

// Text returns the full accumulated buffer.
func (p *Parser) Text() string { return p.buf.String() }

func (p *Parser) emit(body string, complete bool) types.ReasoningStep {
	p.emitted++
	return types.ReasoningStep{
		Index:    p.emitted,
		Title:    p.title,
		Body:     strings.TrimSpace(body),
		Complete: complete,
	}
}

// lastLineStart returns the index just past the last newline at or after from,
// i.e. the start of the trailing (possibly incomplete) line.
func lastLineStart(text string, from int) int {
	if i := strings.LastIndexByte(text[from:], '\n'); i >= 0 {
		return from + i + 1
	}
	return from
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
