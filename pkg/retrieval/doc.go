// Package retrieval implements the document store and its in-process
// vector index.
//
// Documents are keyed by a hash of their content, so adding the same text
// twice stores it once and keeps the first metadata. Every stored document
// carries an embedding of the store's fixed dimensionality. Retrieval embeds
// the query, scores it against every document by cosine similarity and
// returns the best k, keeping insertion order among equal scores.
//
// The whole collection is saved through a storage.DocumentPersister after
// each mutation. A failed save is logged and counted; the in-memory index
// stays authoritative and usable.
package retrieval
