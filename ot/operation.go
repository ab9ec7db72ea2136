package ot

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Kind identifies the payload variant of an Operation.
type Kind uint8

const (
	KindRetain Kind = iota
	KindInsert
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindRetain:
		return "retain"
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Payload is the edit carried by an Operation: Insert, Delete or Retain.
// The set is closed; no type outside this package can implement it.
type Payload interface {
	Kind() Kind
	payload()
}

// Insert splices Text into the document at Position.
type Insert struct {
	Position int
	Text     string
}

// Delete removes Length code points starting at Position.
type Delete struct {
	Position int
	Length   int
}

// Retain leaves the document untouched. It is what a fully cancelled edit becomes.
type Retain struct {
	Count int
}

func (Insert) Kind() Kind { return KindInsert }
func (Delete) Kind() Kind { return KindDelete }
func (Retain) Kind() Kind { return KindRetain }

func (Insert) payload() {}
func (Delete) payload() {}
func (Retain) payload() {}

// Len returns the number of code points inserted.
func (i Insert) Len() int {
	return utf8.RuneCountInString(i.Text)
}

// End returns the exclusive end of the deleted range, saturating at math.MaxInt.
func (d Delete) End() int {
	return addClamped(d.Position, d.Length)
}

// addClamped returns a+b, saturating at math.MaxInt instead of wrapping.
func addClamped(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// Operation is one edit intent, tagged with its author and the document
// version it was generated against. Operations are values: Transform and
// Apply never modify the Operation they are given.
type Operation struct {
	// ID identifies this particular copy. Reconciled copies get a fresh ID.
	ID uuid.UUID

	// Author identifies the originating participant. It is the tie-break key
	// for concurrent inserts at the same position.
	Author string

	// Session groups the co-editors of one logical document.
	Session string

	// Path is the target document.
	Path string

	Payload Payload

	// CreatedAt is informational and never used for ordering.
	CreatedAt time.Time

	// BaseVersion is the document version the operation was generated against.
	BaseVersion int
}

// New returns an Operation with a fresh ID.
func New(author, session, path string, baseVersion int, p Payload) Operation {
	return Operation{
		ID:          uuid.New(),
		Author:      author,
		Session:     session,
		Path:        path,
		Payload:     p,
		CreatedAt:   time.Now(),
		BaseVersion: baseVersion,
	}
}

// NewInsert is a shorthand for New with an Insert payload.
func NewInsert(author, path string, baseVersion, position int, text string) Operation {
	return New(author, "", path, baseVersion, Insert{Position: position, Text: text})
}

// NewDelete is a shorthand for New with a Delete payload.
func NewDelete(author, path string, baseVersion, position, length int) Operation {
	return New(author, "", path, baseVersion, Delete{Position: position, Length: length})
}

// Kind returns the kind of the operation's payload. A nil payload is treated as Retain.
func (op Operation) Kind() Kind {
	if op.Payload == nil {
		return KindRetain
	}
	return op.Payload.Kind()
}

// WithPayload returns a reconciled copy of op carrying p and a fresh ID.
func (op Operation) WithPayload(p Payload) Operation {
	op.ID = uuid.New()
	op.Payload = p
	return op
}

// WithBaseVersion returns a copy of op targeting version v. The ID is kept.
func (op Operation) WithBaseVersion(v int) Operation {
	op.BaseVersion = v
	return op
}

// Validate checks the offsets of op for negative values.
// Upper bounds depend on the text and are checked by Apply.
func (op Operation) Validate() error {
	switch p := op.Payload.(type) {
	case nil:
		return nil
	case Insert:
		if p.Position < 0 {
			return &PositionError{Field: "position", Kind: KindInsert, Offset: p.Position}
		}
	case Delete:
		if p.Position < 0 {
			return &PositionError{Field: "position", Kind: KindDelete, Offset: p.Position}
		}
		if p.Length < 0 {
			return &PositionError{Field: "length", Kind: KindDelete, Offset: p.Length}
		}
	case Retain:
		if p.Count < 0 {
			return &PositionError{Field: "count", Kind: KindRetain, Offset: p.Count}
		}
	default:
		panic(fmt.Sprintf("ot: unknown payload %T", p))
	}
	return nil
}

func (op Operation) String() string {
	switch p := op.Payload.(type) {
	case nil:
		return fmt.Sprintf("retain(0) by %s @%d", op.Author, op.BaseVersion)
	case Insert:
		return fmt.Sprintf("insert(%d, %q) by %s @%d", p.Position, p.Text, op.Author, op.BaseVersion)
	case Delete:
		return fmt.Sprintf("delete(%d, %d) by %s @%d", p.Position, p.Length, op.Author, op.BaseVersion)
	case Retain:
		return fmt.Sprintf("retain(%d) by %s @%d", p.Count, op.Author, op.BaseVersion)
	default:
		panic(fmt.Sprintf("ot: unknown payload %T", p))
	}
}

// wireOperation is the flat JSON shape of an Operation.
type wireOperation struct {
	ID          uuid.UUID `json:"id"`
	Author      string    `json:"author"`
	Session     string    `json:"session,omitempty"`
	Path        string    `json:"path"`
	Type        string    `json:"type"`
	Position    int       `json:"position"`
	Text        string    `json:"text,omitempty"`
	Length      int       `json:"length,omitempty"`
	Count       int       `json:"count,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	BaseVersion int       `json:"baseVersion"`
}

// MarshalJSON encodes the payload inline, discriminated by "type".
func (op Operation) MarshalJSON() ([]byte, error) {
	w := wireOperation{
		ID:          op.ID,
		Author:      op.Author,
		Session:     op.Session,
		Path:        op.Path,
		Type:        op.Kind().String(),
		CreatedAt:   op.CreatedAt,
		BaseVersion: op.BaseVersion,
	}

	switch p := op.Payload.(type) {
	case nil:
	case Insert:
		w.Position, w.Text = p.Position, p.Text
	case Delete:
		w.Position, w.Length = p.Position, p.Length
	case Retain:
		w.Count = p.Count
	default:
		return nil, fmt.Errorf("ot: unknown payload %T", p)
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes the shape written by MarshalJSON.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var w wireOperation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var p Payload
	switch w.Type {
	case "insert":
		p = Insert{Position: w.Position, Text: w.Text}
	case "delete":
		p = Delete{Position: w.Position, Length: w.Length}
	case "retain", "":
		p = Retain{Count: w.Count}
	default:
		return fmt.Errorf("ot: unknown operation type %q", w.Type)
	}

	*op = Operation{
		ID:          w.ID,
		Author:      w.Author,
		Session:     w.Session,
		Path:        w.Path,
		Payload:     p,
		CreatedAt:   w.CreatedAt,
		BaseVersion: w.BaseVersion,
	}
	return nil
}
