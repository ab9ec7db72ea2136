package ot

import (
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Policy decides which copy of an accepted operation is recorded in history.
type Policy uint8

const (
	// RecordReconciled records the operation as it was applied, after it was
	// transformed against the history it had not seen. Later submitters that
	// lag behind it fold through operations expressed against the same
	// document states, which keeps every participant convergent.
	RecordReconciled Policy = iota

	// RecordSubmitted records the operation as the participant submitted it,
	// with only its version stamped. Convergence is only guaranteed for
	// submitters lagging by at most one version.
	RecordSubmitted
)

func (p Policy) String() string {
	switch p {
	case RecordReconciled:
		return "reconciled"
	case RecordSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Entry is an accepted operation stamped with the version it produced.
type Entry struct {
	Operation Operation
	Version   int
}

// Result is returned by Engine.Accept.
type Result struct {
	// Text is the document after the reconciled operation was applied.
	Text string

	// Operation is the reconciled operation, to be relayed to other participants.
	Operation Operation

	// Entry is what was appended to history.
	Entry Entry
}

// Version returns the document version after the accepted operation.
func (r Result) Version() int {
	return r.Entry.Version
}

// history is the state kept for one document path. Its version is always len(entries).
type history struct {
	entries []Entry
}

func (h *history) version() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for debug traces.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHistoryPolicy selects which copy of an accepted operation is recorded.
func WithHistoryPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// Engine keeps an append-only operation history and a version counter per
// document path. It never holds document text: every call receives the
// current text and returns the new one.
//
// Calls touching the same path must be serialized by the caller. Calls for
// different paths may run in parallel.
type Engine struct {
	// mu guards the docs map only, not the histories it points to.
	mu   sync.RWMutex
	docs map[string]*history

	logger logrus.FieldLogger
	policy Policy
}

// NewEngine returns an Engine with no documents.
func NewEngine(opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		docs:   make(map[string]*history),
		logger: discard,
		policy: RecordReconciled,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lookup(path string) *history {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.docs[path]
}

// Accept reconciles op against every operation recorded for op.Path since
// op.BaseVersion, applies the result to text, and records it. On error
// nothing is recorded and text is returned unchanged.
func (e *Engine) Accept(op Operation, text string) (Result, error) {
	h := e.lookup(op.Path)
	current := h.version()

	if err := op.Validate(); err != nil {
		return Result{Text: text}, err
	}
	if op.BaseVersion < 0 || op.BaseVersion > current {
		return Result{Text: text}, &PositionError{Field: "base version", Kind: op.Kind(), Offset: op.BaseVersion, Limit: current}
	}

	reconciled := op
	if h != nil {
		for _, entry := range h.entries[op.BaseVersion:] {
			reconciled = Transform(reconciled, entry.Operation)
		}
	}

	newText, err := Apply(reconciled, text)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"path":    op.Path,
			"author":  op.Author,
			"base":    op.BaseVersion,
			"version": current,
		}).Debugf("rejected %v: %v", reconciled, err)
		return Result{Text: text}, err
	}

	entry := Entry{Operation: reconciled.WithBaseVersion(current), Version: current + 1}
	if e.policy == RecordSubmitted {
		entry.Operation = op
	}

	if h == nil {
		h = e.create(op.Path)
	}
	h.entries = append(h.entries, entry)

	e.logger.WithFields(logrus.Fields{
		"path":    op.Path,
		"author":  op.Author,
		"base":    op.BaseVersion,
		"version": entry.Version,
	}).Debugf("accepted %v", reconciled)

	return Result{
		Text:      newText,
		Operation: reconciled.WithBaseVersion(current),
		Entry:     entry,
	}, nil
}

func (e *Engine) create(path string) *history {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.docs[path]
	if !ok {
		h = &history{}
		e.docs[path] = h
	}
	return h
}

// Version returns the current version of the document at path, 0 if it has no history.
func (e *Engine) Version(path string) int {
	return e.lookup(path).version()
}

// History returns a copy of the entries recorded for path.
func (e *Engine) History(path string) []Entry {
	h := e.lookup(path)
	if h == nil {
		return nil
	}
	return append([]Entry(nil), h.entries...)
}

// Since returns the entries recorded after version, which is what a
// participant last seen at version needs to catch up.
func (e *Engine) Since(path string, version int) ([]Entry, error) {
	h := e.lookup(path)
	current := h.version()
	if version < 0 || version > current {
		return nil, &PositionError{Field: "base version", Kind: KindRetain, Offset: version, Limit: current}
	}
	if h == nil {
		return nil, nil
	}
	return append([]Entry(nil), h.entries[version:]...), nil
}

// CloseDocument drops the history of path. The next accepted operation for
// path starts again at version 1.
func (e *Engine) CloseDocument(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.docs, path)
}

// Documents returns the sorted paths that currently have history.
func (e *Engine) Documents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	paths := make([]string, 0, len(e.docs))
	for path := range e.docs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
