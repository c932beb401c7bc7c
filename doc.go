// Package seqrepo provides read-only, random-access retrieval of
// biological sequences from a biocommons/seqrepo-layout repository.
//
// A repository root contains named instance directories, each holding an
// alias database (aliases.sqlite3) and a sequences directory with a
// metadata database (db.sqlite3) and bgzip-compressed FASTA containers.
// [SeqRepo] composes the two halves: [AliasDB] resolves a namespaced
// alias to exactly one sequence id, and [FastaDir] reads an arbitrary
// fragment of that sequence without decompressing the whole container.
//
// # Quick start
//
//	sr, err := seqrepo.New("~/seqrepo-data", "latest")
//	if err != nil {
//	    return err
//	}
//	defer sr.Close()
//	seq, err := sr.FetchSequence(seqrepo.NewAlias("NM_001304430.2"))
//
// Fragments use zero-based half-open ranges; the end bound is clamped to
// the sequence length:
//
//	begin, end := 0, 4
//	prefix, err := sr.FetchSequencePart(aos, &begin, &end)
//
// # Caching
//
// [CacheWritingSeqRepo] wraps any [Fetcher] and records every fetched
// value in an append-only FASTA cache file; [CacheReadingSeqRepo] serves
// exclusively from such a file and needs no live repository. All three
// implementations share the [Fetcher] interface, so callers are agnostic
// to which one they hold. This is useful in CI: record locally, replay
// deterministically in the pipeline.
package seqrepo
