// Package dmx implements the DMX512 frame transmission engine.
//
// Ownership boundary:
// - the shared 512-channel universe buffer
//
// - frame timing computation and validation against protocol minimums
//
// - the perpetual break / mark-after-break / data / gap transmission loop
//
// The engine drives a Transport capability and is its sole owner while a
// session is running. Concrete backends live under internal/transport;
// dmx never opens devices itself.
//
// Producers write channel values through Universe at any time. The engine
// takes one consistent snapshot per frame, so a frame on the wire is never
// a mix of values from a single torn write.
package dmx
