// Package qptrie implements a DNS-tuned qp-trie: an ordered map from domain
// names to arbitrary values, backed by a popcount-compressed patricia trie
// over a bit/shift encoding of the wire-format name.
//
// The trie is the storage core of a zone database: it supports exact
// lookup, predecessor lookup, insertion with neighbour reporting, deletion
// and in-order traversal, plus copy-on-write snapshots so a single writer
// can prepare a new version of the tree while readers keep using the old
// one until the new version is published.
//
// Concurrency: a *Handle is safe for any number of concurrent readers
// (Get, FindLE, ForEach, Count) together with at most one writer driving
// CowStart/Add/Del/CowFinish on the draft it opens. Calling CowStart
// concurrently with an already-open draft, or mutating the live state
// directly while a draft is open, is a programming error.
package qptrie

// PageSize is the fixed number of nodes per allocation page. It is a
// package-level constant rather than a Config field because twig
// references are computed as pageIndex*PageSize+offset; changing it
// would invalidate any reference held across a Config change.
const PageSize = 4096
