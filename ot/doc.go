// Package ot implements operational transformation for plain text documents.
//
// An Operation is one edit (Insert, Delete or Retain) generated against a
// known document version. Transform rewrites an operation so that it can be
// applied after a concurrent one, and Apply runs it on a text snapshot.
// Offsets and lengths count Unicode code points.
//
// Engine keeps the per-document history on the server side: Accept folds an
// incoming operation through everything recorded since its base version and
// applies the result. Client is the matching participant-side state.
package ot
