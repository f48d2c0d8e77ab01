// Package processor turns a staged object into decoded records.
//
// A [Processor] reads the staged file line by line (see package linereader),
// renews the message lease before every line, feeds each line to a
// [Decoder], and hands every record the decoder yields to a [Sink] together
// with the object's [Metadata]. Once the file is exhausted the decoder is
// flushed so that aggregating decoders emit their trailing record.
//
// Processing keeps no partial-progress checkpoint: a file that is not read
// to the end is reprocessed from the start when its message is redelivered,
// so sinks receive records at least once.
//
// Decoders are chosen per folder classification through [Codecs], which
// always falls back to a default decoder when a folder has no mapping.
package processor
