// Package features computes per-phase gaze metrics: scanpath length,
// positional dispersion, a per-sample speed proxy and the low-frequency
// magnitude spectrum of each position channel.
//
// Every computation is a pure function of one segment and returns an
// *InsufficientDataError when the segment is too short for it. Compute runs
// all four and keeps going past individual failures.
package features
