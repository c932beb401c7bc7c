// Command seqrepo provides read-only command line access to a sequence
// repository: "export" streams FASTA for aliased sequences and "fetch"
// prints a single sequence or fragment.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/varfish-org/seqrepo"
)

const defaultRootDir = "~/hgvs-rs-data/seqrepo-data"

// config holds the arguments shared by all subcommands. Values resolve
// in increasing precedence: built-in defaults, the optional YAML config
// file, the SEQREPO_ROOT_DIR environment variable, then flags.
type config struct {
	RootDirectory string `yaml:"root_directory"`
	InstanceName  string `yaml:"instance_name"`

	verbosity int
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "seqrepo: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand, expected one of: export, fetch")
	}

	switch args[0] {
	case "export":
		return runExport(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "-h", "--help", "help":
		usage(os.Stdout)
		return nil
	default:
		return fmt.Errorf("unknown subcommand %q, expected one of: export, fetch", args[0])
	}
}

func usage(w *os.File) {
	fmt.Fprintln(w, "Usage: seqrepo <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  export [aliases...]   write aliased sequences as FASTA to stdout")
	fmt.Fprintln(w, "  fetch                 print one sequence or fragment")
}

// commonFlags registers the shared flags on fs and returns the config
// they populate along with the path of an optional YAML config file.
func commonFlags(fs *pflag.FlagSet) (*config, *string) {
	cfg := &config{
		RootDirectory: defaultRootDir,
		InstanceName:  "latest",
	}
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.StringVarP(&cfg.RootDirectory, "root-directory", "r", cfg.RootDirectory, "repository root directory")
	fs.StringVarP(&cfg.InstanceName, "instance-name", "i", cfg.InstanceName, "repository instance name")
	fs.CountVarP(&cfg.verbosity, "verbose", "v", "increase log verbosity")
	return cfg, configPath
}

// resolve finishes the shared configuration after flag parsing, applying
// the YAML file and environment variable beneath any explicit flags.
func (c *config) resolve(fs *pflag.FlagSet, configPath string) error {
	if configPath != "" {
		buf, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		fromFile := config{}
		if err := yaml.Unmarshal(buf, &fromFile); err != nil {
			return fmt.Errorf("parse config %s: %w", configPath, err)
		}
		if !fs.Changed("root-directory") && fromFile.RootDirectory != "" {
			c.RootDirectory = fromFile.RootDirectory
		}
		if !fs.Changed("instance-name") && fromFile.InstanceName != "" {
			c.InstanceName = fromFile.InstanceName
		}
	}
	if !fs.Changed("root-directory") {
		if env := os.Getenv("SEQREPO_ROOT_DIR"); env != "" {
			c.RootDirectory = env
		}
	}
	return nil
}

func (c *config) logger() *slog.Logger {
	level := slog.LevelWarn
	switch {
	case c.verbosity >= 2:
		level = slog.LevelDebug
	case c.verbosity == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *config) open() (*seqrepo.SeqRepo, error) {
	return seqrepo.New(c.RootDirectory, c.InstanceName, seqrepo.WithLogger(c.logger()))
}

// namespaceFor maps the command line namespace names to their stored
// counterparts. The sequence digest namespaces sha512t24u and ga4gh are
// both stored with an empty namespace.
func namespaceFor(name string) (seqrepo.Namespace, error) {
	switch name {
	case "refseq":
		return "NCBI", nil
	case "ensembl":
		return "Ensembl", nil
	case "lrg":
		return "Lrg", nil
	case "sha512t24u", "ga4gh":
		return "", nil
	default:
		return "", fmt.Errorf("unknown namespace %q, expected one of: refseq, ensembl, lrg, sha512t24u, ga4gh", name)
	}
}

// aliasFor rewrites an alias for the given command line namespace.
// Digest aliases are stored with a "GS_" prefix: sha512t24u arguments
// carry the bare digest and ga4gh arguments carry a "SQ." prefix in its
// place.
func aliasFor(name, alias string) (string, error) {
	switch name {
	case "sha512t24u":
		return "GS_" + alias, nil
	case "ga4gh":
		if len(alias) < 3 {
			return "", fmt.Errorf("ga4gh alias %q is too short", alias)
		}
		return "GS_" + alias[3:], nil
	default:
		return alias, nil
	}
}
