package ot

import (
	"fmt"
	"strings"
)

// Transform rewrites self so that it expresses the same intent against a
// document that other has already been applied to. Both operations must have
// been generated against the same document state. Transform only looks at
// offsets, never at text.
func Transform(self, other Operation) Operation {
	switch s := self.Payload.(type) {
	case nil, Retain:
		return self

	case Insert:
		switch o := other.Payload.(type) {
		case nil, Retain:
			return self
		case Insert:
			return transformInsertInsert(self, s, other, o)
		case Delete:
			return transformInsertDelete(self, s, o)
		default:
			panic(fmt.Sprintf("ot: unknown payload %T", o))
		}

	case Delete:
		switch o := other.Payload.(type) {
		case nil, Retain:
			return self
		case Insert:
			return transformDeleteInsert(self, s, o)
		case Delete:
			return transformDeleteDelete(self, s, o)
		default:
			panic(fmt.Sprintf("ot: unknown payload %T", o))
		}

	default:
		panic(fmt.Sprintf("ot: unknown payload %T", s))
	}
}

// TransformPair transforms a and b against each other. Applying b' after a
// and a' after b yields the same text.
func TransformPair(a, b Operation) (Operation, Operation) {
	return Transform(a, b), Transform(b, a)
}

func transformInsertInsert(self Operation, s Insert, other Operation, o Insert) Operation {
	if s.Position < o.Position || (s.Position == o.Position && insertsFirst(self, s, other, o)) {
		return self.WithPayload(s)
	}
	return self.WithPayload(Insert{Position: addClamped(s.Position, o.Len()), Text: s.Text})
}

// insertsFirst orders two inserts at the same position. The author decides;
// ID and text only break ties between operations of the same author.
func insertsFirst(self Operation, s Insert, other Operation, o Insert) bool {
	if self.Author != other.Author {
		return self.Author < other.Author
	}
	if c := strings.Compare(self.ID.String(), other.ID.String()); c != 0 {
		return c < 0
	}
	return s.Text <= o.Text
}

func transformInsertDelete(self Operation, s Insert, o Delete) Operation {
	switch {
	case s.Position <= o.Position:
		return self.WithPayload(s)
	case s.Position >= o.End():
		return self.WithPayload(Insert{Position: s.Position - o.Length, Text: s.Text})
	default:
		// The insert lands inside text that is already gone. The concurrent
		// delete grows over it on the other side, so it is dropped here too.
		return self.WithPayload(Retain{})
	}
}

func transformDeleteInsert(self Operation, s Delete, o Insert) Operation {
	switch {
	case s.Position >= o.Position:
		return self.WithPayload(Delete{Position: addClamped(s.Position, o.Len()), Length: s.Length})
	case s.End() <= o.Position:
		return self.WithPayload(s)
	default:
		return self.WithPayload(Delete{Position: s.Position, Length: addClamped(s.Length, o.Len())})
	}
}

func transformDeleteDelete(self Operation, s Delete, o Delete) Operation {
	switch {
	case s.End() <= o.Position:
		return self.WithPayload(s)
	case s.Position >= o.End():
		return self.WithPayload(Delete{Position: s.Position - o.Length, Length: s.Length})
	}

	overlap := min(s.End(), o.End()) - max(s.Position, o.Position)
	if overlap >= s.Length {
		return self.WithPayload(Retain{})
	}
	return self.WithPayload(Delete{Position: min(s.Position, o.Position), Length: s.Length - overlap})
}
