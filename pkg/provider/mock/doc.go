// Package mock provides deterministic placeholder capability providers.
//
// HashEmbedder derives vectors from an MD5 digest of the text. The vectors
// satisfy the embedding contract (determinism, fixed dimensionality) but
// carry no semantic meaning. Generator returns templated text with a token
// estimate. Both are used when no real backend is configured and throughout
// the tests.
package mock
