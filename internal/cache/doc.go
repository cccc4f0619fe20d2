// Package cache provides a generic LRU cache that also ages entries by
// frame.
//
// Values are stamped with the frame of their last use. A caller that
// renders in frames advances the counter once per frame and sweeps
// entries that went unused for a while:
//
//	layouts := cache.New[uint64, []layout.PositionedGlyph](1024)
//	layouts.NextFrame()
//	if glyphs, ok := layouts.Get(hash); ok {
//		...
//	}
//	layouts.Sweep(60)
package cache
