// Package syntax provides source location types shared by all compiler stages.
package syntax

import "fmt"

// Span represents a location range in source text. Lines and columns are
// 1-based, offsets are 0-based byte offsets.
type Span struct {
	StartLine   uint32
	StartCol    uint32
	StartOffset uint32
	EndLine     uint32
	EndCol      uint32
	EndOffset   uint32
}

// Point returns a zero-width span at the given position.
func Point(line, col, offset uint32) Span {
	return Span{
		StartLine:   line,
		StartCol:    col,
		StartOffset: offset,
		EndLine:     line,
		EndCol:      col,
		EndOffset:   offset,
	}
}

// Join returns a span covering both a and b.
func Join(a, b Span) Span {
	return Span{
		StartLine:   a.StartLine,
		StartCol:    a.StartCol,
		StartOffset: a.StartOffset,
		EndLine:     b.EndLine,
		EndCol:      b.EndCol,
		EndOffset:   b.EndOffset,
	}
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}
