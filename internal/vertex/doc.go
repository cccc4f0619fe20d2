// Package vertex converts resolved glyphs into indexed quads and encodes
// them in the byte layout the text shader reads.
package vertex
