// Command dialoguec compiles an authoring graph into a scenario asset,
// written as JSON, stored in a SQLite asset database, or both.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AaronLay10/SentientDialogue/internal/compiler"
	"github.com/AaronLay10/SentientDialogue/internal/config"
	"github.com/AaronLay10/SentientDialogue/internal/graph"
	"github.com/AaronLay10/SentientDialogue/internal/log"
	"github.com/AaronLay10/SentientDialogue/internal/scenario"
	"github.com/AaronLay10/SentientDialogue/internal/storage/sqlite"
	"github.com/AaronLay10/SentientDialogue/internal/version"
)

type options struct {
	graphPath  string
	configPath string
	outPath    string
	sqlitePath string
	name       string
	force      bool
	strict     bool
	list       bool
	showVer    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dialoguec", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.graphPath, "graph", "", "authoring graph JSON to compile")
	fs.StringVar(&o.configPath, "config", "", "project.yaml with compile and table settings")
	fs.StringVar(&o.outPath, "out", "", "write the compiled asset as JSON to this path")
	fs.StringVar(&o.sqlitePath, "sqlite", "", "store the compiled asset in this SQLite database")
	fs.StringVar(&o.name, "name", "", "asset name in the database (default: project id or graph file name)")
	fs.BoolVar(&o.force, "force", false, "replace an existing asset of the same name")
	fs.BoolVar(&o.strict, "strict", false, "fail when the compile reports diagnostics or unresolved scenarios")
	fs.BoolVar(&o.list, "list", false, "list assets stored in -sqlite and exit")
	fs.BoolVar(&o.showVer, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if o.showVer {
		fmt.Fprintf(stdout, "dialoguec %s (asset format %d)\n", version.Version, version.AssetFormat)
		return 0
	}
	if o.graphPath == "" && fs.NArg() > 0 {
		o.graphPath = fs.Arg(0)
	}

	log.Init(log.FromEnv())

	var err error
	if o.list {
		err = listAssets(o, stdout)
	} else {
		err = compile(o, stdout, stderr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func compile(o options, stdout, stderr io.Writer) error {
	if o.graphPath == "" {
		return errors.New("-graph is required")
	}

	opts := compiler.DefaultOptions()
	var cfg *config.ProjectConfig
	if o.configPath != "" {
		var err error
		cfg, err = config.LoadProjectConfig(o.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.ApplyEnv(); err != nil {
			return err
		}
		opts = cfg.CompileOptions()
		if o.outPath == "" && cfg.Storage.AssetPath != "" {
			o.outPath = cfg.AssetPath()
		}
		if o.sqlitePath == "" && cfg.Storage.SQLitePath != "" {
			o.sqlitePath = cfg.SQLitePath()
		}
	}
	if o.outPath == "" && o.sqlitePath == "" {
		return errors.New("nothing to write: set -out, -sqlite or storage in -config")
	}

	g, err := graph.Load(o.graphPath)
	if err != nil {
		return err
	}
	res, err := compiler.Compile(graph.NewIndex(g), opts)
	if err != nil {
		return err
	}

	for _, d := range res.Diagnostics {
		fmt.Fprintln(stderr, d.String())
	}
	for _, ref := range res.Report.Dangling {
		fmt.Fprintf(stderr, "[dangling_ref] scenario %d node %s: successor %s not in scenario\n", ref.ScenarioID, ref.From, ref.To)
	}
	for _, id := range res.Store.IDs() {
		if e := res.Report.Entries[id]; e.Status == scenario.EntryAmbiguous {
			fmt.Fprintf(stderr, "[ambiguous_entry] scenario %d: no unique entry line\n", id)
		}
	}
	if o.strict && (len(res.Diagnostics) > 0 || !res.Report.OK()) {
		return fmt.Errorf("%d diagnostics in strict mode", len(res.Diagnostics)+len(res.Report.Dangling))
	}

	if o.outPath != "" {
		if err := os.MkdirAll(filepath.Dir(o.outPath), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := scenario.SaveFile(o.outPath, res.Store); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", o.outPath)
	}

	if o.sqlitePath != "" {
		name := o.name
		if name == "" && cfg != nil {
			name = cfg.Project.ID
		}
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(o.graphPath), filepath.Ext(o.graphPath))
		}
		if err := storeAsset(o, name, scenario.NewAsset(res.Store)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "stored %s in %s\n", name, o.sqlitePath)
	}

	fmt.Fprintf(stdout, "%d scenarios, %d lines, %d diagnostics\n",
		res.Report.Scenarios, res.Report.Lines, len(res.Diagnostics))
	return nil
}

func storeAsset(o options, name string, asset *scenario.Asset) error {
	db, err := sqlite.Open(o.sqlitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if o.force {
		return db.PutAsset(ctx, name, asset)
	}
	if err := db.CreateAsset(ctx, name, asset); err != nil {
		if errors.Is(err, sqlite.ErrAssetExists) {
			return fmt.Errorf("%w (use -force to replace)", err)
		}
		return err
	}
	return nil
}

func listAssets(o options, stdout io.Writer) error {
	if o.sqlitePath == "" {
		return errors.New("-list needs -sqlite")
	}
	db, err := sqlite.Open(o.sqlitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	assets, err := db.ListAssets(context.Background())
	if err != nil {
		return err
	}
	for _, a := range assets {
		fmt.Fprintf(stdout, "%-24s %4d scenarios %6d lines  %s\n",
			a.Name, a.Scenarios, a.Lines, a.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
