package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/varfish-org/seqrepo"
	"github.com/varfish-org/seqrepo/internal/fasta"
)

// exportLineWidth is the column at which exported sequence text wraps.
const exportLineWidth = 100

func runExport(args []string) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	cfg, configPath := commonFlags(fs)
	nsName := fs.StringP("namespace", "n", "", "namespace: refseq, ensembl, lrg, sha512t24u, ga4gh")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.resolve(fs, *configPath); err != nil {
		return err
	}

	sr, err := cfg.open()
	if err != nil {
		return err
	}
	defer sr.Close()

	query := seqrepo.Query{}
	if *nsName != "" {
		ns, err := namespaceFor(*nsName)
		if err != nil {
			return err
		}
		query.Namespace = &ns
	}

	var aliases []string
	for _, alias := range fs.Args() {
		alias, err := aliasFor(*nsName, alias)
		if err != nil {
			return err
		}
		aliases = append(aliases, alias)
	}

	return export(os.Stdout, sr, query, aliases)
}

// export streams the alias records matching query (narrowed to aliases
// when non-empty), groups them by sequence id, and writes one FASTA
// record per sequence with all of its aliases on the header line.
func export(w io.Writer, sr *seqrepo.SeqRepo, query seqrepo.Query, aliases []string) error {
	fw := fasta.NewWriterWidth(w, exportLineWidth)

	var group []seqrepo.AliasRecord
	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		if err := exportGroup(fw, sr, group); err != nil {
			return err
		}
		group = group[:0]
		return nil
	}

	// Records arrive ordered by sequence id, so groups are contiguous.
	handle := func(rec seqrepo.AliasRecord, err error) error {
		if err != nil {
			return err
		}
		if len(group) > 0 && group[0].SeqID != rec.SeqID {
			if err := flush(); err != nil {
				return err
			}
		}
		group = append(group, rec)
		return nil
	}

	if len(aliases) == 0 {
		for rec, err := range sr.AliasDB().Find(query) {
			if err := handle(rec, err); err != nil {
				return err
			}
		}
	} else {
		for _, alias := range aliases {
			query.Alias = &alias
			for rec, err := range sr.AliasDB().Find(query) {
				if err := handle(rec, err); err != nil {
					return err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}
	return fw.Flush()
}

func exportGroup(fw *fasta.Writer, sr *seqrepo.SeqRepo, group []seqrepo.AliasRecord) error {
	seq, err := sr.FetchSequence(seqrepo.NewSeqID(group[0].SeqID))
	if err != nil {
		return fmt.Errorf("fetch %s: %w", group[0].SeqID, err)
	}

	sort.SliceStable(group, func(i, j int) bool {
		return group[i].Namespace < group[j].Namespace
	})
	metas := make([]string, len(group))
	for i, rec := range group {
		metas[i] = fmt.Sprintf("%s:%s", rec.Namespace, rec.Alias)
	}

	return fw.WriteRecord(fasta.Record{
		Name:     strings.Join(metas, " "),
		Sequence: seq,
	})
}
