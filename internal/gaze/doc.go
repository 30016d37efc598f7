// Package gaze resolves experiment phases from the marker stream, aligns
// them onto the gaze stream's sample grid and validates the resulting
// segments.
//
// Flow for one session:
//
//	idx, _ := BuildMarkerIndex(markers)      // one positional scan
//	windows, errs := idx.ResolveAll(phases)  // (start, end) timestamps per phase
//	segs := aligner.Segments(windows)        // nearest-sample slicing
//	err := CheckIntegrity(phases, windows, segs, errs)
//
// Nothing here mutates the input streams.
package gaze
