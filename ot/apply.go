package ot

import "fmt"

// Apply applies op to text and returns the new text. Offsets count code points.
// Delete lengths running past the end of text are clamped.
func Apply(op Operation, text string) (string, error) {
	if err := op.Validate(); err != nil {
		return text, err
	}

	switch p := op.Payload.(type) {
	case nil, Retain:
		return text, nil

	case Insert:
		runes := []rune(text)
		if p.Position > len(runes) {
			return text, &PositionError{Field: "position", Kind: KindInsert, Offset: p.Position, Limit: len(runes)}
		}
		return string(runes[:p.Position]) + p.Text + string(runes[p.Position:]), nil

	case Delete:
		runes := []rune(text)
		if p.Position > len(runes) {
			return text, &PositionError{Field: "position", Kind: KindDelete, Offset: p.Position, Limit: len(runes)}
		}
		end := p.Position + min(p.Length, len(runes)-p.Position)
		return string(runes[:p.Position]) + string(runes[end:]), nil

	default:
		panic(fmt.Sprintf("ot: unknown payload %T", p))
	}
}
