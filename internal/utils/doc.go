// Package utils provides shared low-level helpers used throughout the
// dashrelay internals: [DoPostStream] for opening a streaming HTTP POST,
// [FrameScanner] together with [FrameData] for splitting a byte-oriented SSE
// body into event frames, [ParseJSONLenient] for tolerant JSON decoding of
// upstream error bodies, and generic pointer and string utilities.
package utils
