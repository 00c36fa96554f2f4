// Command cedarbib is the CLI tool for CedarBib.
// It provides commands for converting, querying, summarizing, and serving
// BibTeX bibliographies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/FocuswithJustin/CedarBib/core/bibtex"
	"github.com/FocuswithJustin/CedarBib/core/bibxml"
	"github.com/FocuswithJustin/CedarBib/core/sqlite"
	"github.com/FocuswithJustin/CedarBib/core/store"
	"github.com/FocuswithJustin/CedarBib/internal/api"
	"github.com/FocuswithJustin/CedarBib/internal/fileutil"
	"github.com/FocuswithJustin/CedarBib/internal/logging"
)

const version = "0.3.0"

// CLI defines the command-line interface for cedarbib.
var CLI struct {
	// Global flags
	Verbose bool `short:"v" help:"Enable debug logging"`
	LogJSON bool `name:"log-json" help:"Emit logs as JSON"`

	Convert ConvertCmd `cmd:"" help:"Convert bibliography files to another format"`
	Query   QueryCmd   `cmd:"" help:"Print elements matching a query"`
	Info    InfoCmd    `cmd:"" help:"Summarize bibliography files"`
	Export  ExportCmd  `cmd:"" help:"Export bibliography files into a SQLite database"`
	Serve   ServeCmd   `cmd:"" help:"Serve a bibliography file over HTTP"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ConvertCmd parses bibliography files and renders them in another format.
type ConvertCmd struct {
	Files  []string `arg:"" help:"Bibliography files or doublestar globs"`
	To     string   `help:"Output format" default:"bib" enum:"bib,json,yaml,xml,bibxml"`
	Out    string   `short:"o" help:"Output file (default: stdout); compresses by extension" type:"path"`
	Sort   bool     `help:"Sort elements by type and text before rendering"`
	Expand bool     `help:"Expand string constant references into literal text"`
	Meta   bool     `help:"Keep free text between blocks as meta content elements"`
	Months bool     `name:"month-macros" help:"Resolve the standard month macros (jan..dec)"`
}

func (c *ConvertCmd) Run() error {
	bib, err := loadFiles(c.Files, bibtex.ParseOptions{IncludeMeta: c.Meta, MonthMacros: c.Months})
	if err != nil {
		return err
	}
	if c.Sort {
		bib.Sort()
	}
	if c.Expand {
		bib.ExpandStrings()
		bib.JoinStrings()
	}

	var data []byte
	switch c.To {
	case "bib":
		data = []byte(bib.String())
	case "json":
		data, err = bib.ToJSON()
	case "yaml":
		data, err = bib.ToYAML()
	case "xml":
		data, err = bib.ToXML()
	case "bibxml":
		data, err = bibxml.Export(bib, bibxml.ExportOptions{Expand: c.Expand})
	}
	if err != nil {
		return fmt.Errorf("render as %s: %w", c.To, err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	if c.Out == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := fileutil.WriteFile(c.Out, data); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d elements, %d bytes)\n", c.Out, bib.Len(), len(data))
	return nil
}

// QueryCmd prints the elements matching a query expression.
type QueryCmd struct {
	Expr  string   `arg:"" help:"Citation key, /regex/, or @type[condition] clauses"`
	Files []string `arg:"" help:"Bibliography files or doublestar globs"`
	Meta  bool     `help:"Keep free text between blocks as meta content elements"`
	Count bool     `short:"c" help:"Print only the number of matches"`
}

func (c *QueryCmd) Run() error {
	bib, err := loadFiles(c.Files, bibtex.ParseOptions{IncludeMeta: c.Meta})
	if err != nil {
		return err
	}
	matches, err := bib.Query(c.Expr)
	if err != nil {
		return err
	}
	if c.Count {
		fmt.Println(len(matches))
		return nil
	}
	for i, el := range matches {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(el.Text())
	}
	return nil
}

// InfoCmd summarizes bibliography files: element counts per type, the
// string constant table, duplicate citation keys, and entries missing
// required fields.
type InfoCmd struct {
	Files []string `arg:"" help:"Bibliography files or doublestar globs"`
	Meta  bool     `help:"Count free text between blocks as meta content elements"`
}

func (c *InfoCmd) Run() error {
	paths, err := resolveFiles(c.Files)
	if err != nil {
		return err
	}
	for i, path := range paths {
		if i > 0 {
			fmt.Println()
		}
		if err := printInfo(path, bibtex.ParseOptions{IncludeMeta: c.Meta}); err != nil {
			return err
		}
	}
	return nil
}

func printInfo(path string, opts bibtex.ParseOptions) error {
	bib, err := openBibliography(path, opts)
	if err != nil {
		return err
	}

	kindCounts := make(map[bibtex.Kind]int)
	typeCounts := make(map[string]int)
	keyCounts := make(map[string]int)
	var incomplete []*bibtex.Entry
	for _, el := range bib.Elements() {
		kindCounts[el.Kind()]++
		if e, ok := el.(*bibtex.Entry); ok {
			typeCounts[e.Type()]++
			if e.Key() != "" {
				keyCounts[e.Key()]++
			}
			if !e.Valid() {
				incomplete = append(incomplete, e)
			}
		}
	}

	fmt.Printf("%s: %d elements\n", path, bib.Len())
	fmt.Printf("  %-18s %d\n", "entries", kindCounts[bibtex.KindEntry])
	for _, btype := range sortedKeys(typeCounts) {
		fmt.Printf("    %-16s %d\n", btype, typeCounts[btype])
	}
	fmt.Printf("  %-18s %d\n", "string constants", kindCounts[bibtex.KindStringConstant])
	fmt.Printf("  %-18s %d\n", "preambles", kindCounts[bibtex.KindPreamble])
	fmt.Printf("  %-18s %d\n", "comments", kindCounts[bibtex.KindComment])
	if opts.IncludeMeta {
		fmt.Printf("  %-18s %d\n", "meta content", kindCounts[bibtex.KindMetaContent])
	}

	if constants := bib.StringConstants(); len(constants) > 0 {
		fmt.Println()
		fmt.Println("  Strings:")
		for _, s := range constants {
			fmt.Printf("    %-14s = %s\n", s.Key(), s.Value().String())
		}
	}

	var dups []string
	for key, n := range keyCounts {
		if n > 1 {
			dups = append(dups, fmt.Sprintf("%s x%d", key, n))
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		fmt.Println()
		fmt.Println("  Duplicate keys:")
		for _, d := range dups {
			fmt.Printf("    %s\n", d)
		}
	}

	if len(incomplete) > 0 {
		fmt.Println()
		fmt.Println("  Incomplete entries:")
		for _, e := range incomplete {
			fmt.Printf("    %s (%s): missing %s\n",
				e.Key(), e.Type(), strings.Join(e.MissingFields(), ", "))
		}
	}
	return nil
}

// ExportCmd stores bibliography files in a SQLite database via core/store.
type ExportCmd struct {
	Files []string `arg:"" help:"Bibliography files or doublestar globs"`
	DB    string   `required:"" help:"SQLite database path" type:"path"`
	Meta  bool     `help:"Keep free text between blocks as meta content elements"`
}

func (c *ExportCmd) Run() error {
	paths, err := resolveFiles(c.Files)
	if err != nil {
		return err
	}

	st, err := store.Open(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, path := range paths {
		bib, err := openBibliography(path, bibtex.ParseOptions{IncludeMeta: c.Meta})
		if err != nil {
			return err
		}
		name := storeName(path)
		if err := st.Save(name, bib); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
		fmt.Printf("Saved %s as %q (%d elements)\n", path, name, bib.Len())
	}

	infos, err := st.List()
	if err != nil {
		return err
	}
	fmt.Printf("\nDatabase %s holds %d bibliographies (%s driver)\n",
		c.DB, len(infos), sqlite.DriverType())
	return nil
}

// ServeCmd serves one bibliography file over HTTP.
type ServeCmd struct {
	File     string        `arg:"" help:"Bibliography file to serve" type:"existingfile"`
	Addr     string        `help:"Listen address" default:":8780"`
	Watch    bool          `short:"w" help:"Reload when the file changes on disk"`
	Debounce time.Duration `help:"Watch debounce interval" default:"500ms"`
	Meta     bool          `help:"Surface free text between blocks as elements"`
	Months   bool          `name:"month-macros" help:"Resolve the standard month macros (jan..dec)"`
}

func (c *ServeCmd) Run() error {
	srv, err := api.New(api.Config{
		Addr:        c.Addr,
		Path:        c.File,
		IncludeMeta: c.Meta,
		MonthMacros: c.Months,
		Watch:       c.Watch,
		Debounce:    c.Debounce,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("cedarbib version %s\n", version)
	return nil
}

// Helper functions

// resolveFiles expands doublestar glob patterns against the filesystem.
// Plain paths pass through unchecked so missing files error at open time.
func resolveFiles(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			if !seen[pattern] {
				seen[pattern] = true
				paths = append(paths, pattern)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	return paths, nil
}

// loadFiles parses every resolved file and merges the elements into one
// bibliography, in argument order.
func loadFiles(patterns []string, opts bibtex.ParseOptions) (*bibtex.Bibliography, error) {
	paths, err := resolveFiles(patterns)
	if err != nil {
		return nil, err
	}
	merged := bibtex.New()
	if opts.MonthMacros {
		merged.UseMonthMacros()
	}
	for _, path := range paths {
		els, err := readElements(path, opts)
		if err != nil {
			return nil, err
		}
		for _, el := range els {
			if err := merged.Add(el); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	return merged, nil
}

// openBibliography parses one file into its own bibliography. BibTeXML
// documents are detected by extension; everything else parses as .bib.
func openBibliography(path string, opts bibtex.ParseOptions) (*bibtex.Bibliography, error) {
	if isBibXML(path) {
		bib, err := bibxml.ImportFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return bib, nil
	}
	bib, err := bibtex.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return bib, nil
}

// readElements parses one file into detached elements so they can join a
// merged bibliography.
func readElements(path string, opts bibtex.ParseOptions) ([]bibtex.Element, error) {
	if isBibXML(path) {
		bib, err := bibxml.ImportFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		els := bib.Elements()
		for _, el := range els {
			if err := bib.Remove(el); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		return els, nil
	}
	data, err := fileutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	els, err := bibtex.ParseElements(string(data), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return els, nil
}

// isBibXML reports whether the path names a BibTeXML document, ignoring
// compression extensions.
func isBibXML(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".xz")
	return strings.HasSuffix(name, ".xml")
}

// storeName derives the database name for a file: the base name with
// compression and bibliography extensions trimmed.
func storeName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".xz", ".bib", ".xml"} {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" {
		return filepath.Base(path)
	}
	return name
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cedarbib"),
		kong.Description("CedarBib - BibTeX parsing, querying, and serving toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	level := logging.LevelInfo
	if CLI.Verbose {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if CLI.LogJSON {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
