// Package acquire fetches raw text content for each card source type.
//
// Acquisition is the first pipeline stage: given a card's type and source,
// it produces the text that will be chunked and embedded. Each source type
// has its own strategy:
//
//   - text: the source is the content, no I/O
//   - url, tweet: delegated to the crawler service's /scrape endpoint
//   - youtube: audio download via yt-dlp, then an external transcription
//     service (submit, poll until done)
//   - pdf, spotify: not yet supported, rejected permanently
//
// Failures that may resolve on a later attempt (network errors, service
// errors) are reported as *AcquisitionError so callers can schedule a
// retry; ErrUnsupportedSourceType is permanent.
package acquire
