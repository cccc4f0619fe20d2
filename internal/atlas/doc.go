// Package atlas implements the glyph texture atlas: shelf packing of
// coverage bitmaps into one power-of-two texture, retention of the raw
// bitmaps for re-upload, a generation counter for invalidating texture
// coordinates, and the growth policy.
//
// The texture itself lives behind the Uploader interface so the same
// packing logic drives the GPU texture and the CPU mirror used in tests.
package atlas
