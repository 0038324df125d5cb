// Package stream turns a streamed response body into rendered report content.
//
// A body is consumed as a sequence of chunks (one chunk per successful Read).
// Each chunk is decoded to text by a Decoder and folded into the current
// output by a Policy; the output is written to a Sink after every chunk.
//
// Two decoders are provided:
//   - NewChunkDecoder decodes every chunk on its own. A multi-byte character
//     split across two chunks is replaced by U+FFFD.
//   - NewStreamDecoder carries incomplete trailing bytes over to the next
//     chunk, so split characters survive.
//
// Two policies are provided:
//   - SentinelPolicy: chunks replace the output until a chunk equal to
//     Sentinel arrives; the output is then cleared and later chunks append.
//   - ReplacePolicy: every chunk replaces the output.
package stream
