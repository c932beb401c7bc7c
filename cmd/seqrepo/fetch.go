package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/varfish-org/seqrepo"
)

func runFetch(args []string) error {
	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	cfg, configPath := commonFlags(fs)
	alias := fs.StringP("alias", "a", "", "alias to resolve and fetch")
	seqID := fs.StringP("seq-id", "s", "", "sequence id to fetch")
	nsName := fs.StringP("namespace", "n", "", "namespace: refseq, ensembl, lrg, sha512t24u, ga4gh")
	begin := fs.Int("begin", 0, "zero-based start of the fragment")
	end := fs.Int("end", 0, "exclusive end of the fragment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.resolve(fs, *configPath); err != nil {
		return err
	}

	if (*alias == "") == (*seqID == "") {
		return fmt.Errorf("exactly one of --alias and --seq-id is required")
	}
	if *seqID != "" && *nsName != "" {
		return fmt.Errorf("--namespace only applies to --alias")
	}

	var aos seqrepo.AliasOrSeqID
	switch {
	case *seqID != "":
		aos = seqrepo.NewSeqID(*seqID)
	case *nsName != "":
		ns, err := namespaceFor(*nsName)
		if err != nil {
			return err
		}
		rewritten, err := aliasFor(*nsName, *alias)
		if err != nil {
			return err
		}
		aos = seqrepo.NewNamespacedAlias(ns, rewritten)
	default:
		aos = seqrepo.NewAlias(*alias)
	}

	var b, e *int
	if fs.Changed("begin") {
		b = begin
	}
	if fs.Changed("end") {
		e = end
	}

	sr, err := cfg.open()
	if err != nil {
		return err
	}
	defer sr.Close()

	seq, err := sr.FetchSequencePart(aos, b, e)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, seq)
	return nil
}
