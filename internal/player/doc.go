// Package player is the playback scheduling and rendering engine: it
// turns a declaratively-durationed playlist into a continuously running,
// seekable, loopable, drift-corrected timeline and hands exactly one
// layer at a time to a renderer, transitions included.
//
// The moving parts, leaf first: Tick produces drift-corrected offsets; a
// Layer wraps one widget plus its surface and duration policy; a
// Playlist resolves which layer owns a global offset and plays layers
// strictly in sequence; a Renderer owns one surface and swaps layers on
// it; a Player wires all of it together and publishes playback events.
//
// Everything composes through cold Tasks: building playback does no work
// until the task runs, and cancelling its context is the one and only
// teardown mechanism.
package player
