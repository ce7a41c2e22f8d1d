// Package fasta implements the streaming FASTA index builder.
//
// Reader makes a single forward pass over a (multi)FASTA byte stream and
// yields one Record per header-delimited fragment. It never loads
// payload bytes into memory; it records byte offsets and accumulates
// the logical (non-newline) length by scanning.
//
// Only UNIX line endings are recognized. A fragment starts at a line
// whose first byte is '>'; the rest of that line up to, but excluding,
// the terminating LF is the header, split on the first ASCII whitespace
// into an id and the remaining "extra" text.
package fasta
