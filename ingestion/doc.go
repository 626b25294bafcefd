// Package ingestion orchestrates the card processing pipeline.
//
// A card moves through: acquire content for its source type, split the
// content into overlapping chunks, embed every chunk in one batch, and
// atomically persist the chunk set alongside the card's content. The
// card's status records progress (pending, processing, completed, failed)
// and is updated before any error leaves the pipeline, so a card's failure
// is always visible even if the job is later retried or dead-lettered.
//
// The Worker consumes jobs from the durable queue on a bounded pool.
// Errors are classified by IsPermanent: permanent failures acknowledge the
// job (retrying cannot help), transient ones fail the delivery so the
// queue redelivers it with backoff.
package ingestion
