package main

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/config"
	"github.com/sumtype/deadval/deadval"
	"github.com/sumtype/deadval/internal/depgraph"
	"github.com/sumtype/deadval/internal/label"
	"github.com/sumtype/deadval/internal/report"
)

//go:embed doc.go
var doc string

var (
	whyAliveFlag = flag.String("whyalive", "", "show a path from the program root to the named identifier (module.name)")
	whyDeadFlag  = flag.String("whydead", "", "explain why the named identifier (module.name) is dead")
	writeFlag    = flag.Bool("write", false, "back-annotate dead ranges into their source files instead of printing a report")
	debugFlag    = flag.Bool("debug", false, "dump the closure map, reductions, and liveness map to stderr")
	suppressFlag = flag.String("suppress", "", "comma-separated list of source path prefixes to suppress")
	parallelFlag = flag.Bool("parallel", false, "run preprocessing and constraint generation one goroutine per compilation unit")
	formatFlag   = flag.String("f", "", "format output records using template")
	jsonFlag     = flag.Bool("json", false, "output JSON records")
)

func usage() {
	_, after, _ := strings.Cut(doc, "/*\n")
	doc, _, _ := strings.Cut(after, "*/")
	io.WriteString(flag.CommandLine.Output(), doc+`
Flags:

`)
	flag.PrintDefaults()
}

func main() {
	log.SetPrefix("deadval: ")
	log.SetFlags(0)

	flag.Usage = usage
	flag.Parse()
	if len(flag.Args()) == 0 {
		usage()
		os.Exit(2)
	}

	if *formatFlag != "" {
		if *jsonFlag {
			log.Fatalf("you cannot specify both -f=template and -json")
		}
		if _, err := template.New("deadval").Parse(*formatFlag); err != nil {
			log.Fatalf("invalid -f: %v", err)
		}
	}
	if *whyAliveFlag != "" && *whyDeadFlag != "" {
		log.Fatalf("you cannot specify both -whyalive and -whydead")
	}

	units, byFile := loadUnits(flag.Args())

	var suppress []string
	if *suppressFlag != "" {
		suppress = strings.Split(*suppressFlag, ",")
	}
	cfg := config.Config{
		Debug:    *debugFlag,
		Write:    *writeFlag,
		Suppress: suppress,
		Parallel: *parallelFlag,
	}

	res, errs := deadval.Analyze(units, cfg)
	for _, e := range errs {
		log.Printf("%v", e)
	}

	if *debugFlag {
		dumpDebug(res)
	}

	if target := *whyAliveFlag; target != "" {
		explainLiveness(res, target, "whyalive")
		return
	}
	if target := *whyDeadFlag; target != "" {
		explainLiveness(res, target, "whydead")
		return
	}

	if *writeFlag {
		if err := writeBack(res.Warnings, byFile); err != nil {
			log.Fatalf("-write: %v", err)
		}
		return
	}

	printWarnings(res.Warnings)
}

// loadUnits decodes every named artifact file independently: a
// malformed file is logged and skipped rather than aborting the
// whole run (spec §7's per-unit recoverability extends to loading,
// which happens before deadval.Analyze ever sees a unit). byFile maps
// each unit's declared source path back to the unit, for -write.
func loadUnits(paths []string) ([]*artifact.CompilationUnit, map[string]*artifact.CompilationUnit) {
	var units []*artifact.CompilationUnit
	byFile := make(map[string]*artifact.CompilationUnit)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("%s: %v", path, err)
			continue
		}
		us, err := artifact.Load(data)
		if err != nil {
			log.Printf("%s: %v", path, err)
			continue
		}
		for _, u := range us {
			units = append(units, u)
			byFile[u.File] = u
		}
	}
	if len(units) == 0 {
		log.Fatalf("no compilation units loaded")
	}
	return units, byFile
}

// resolveTarget parses "module.name" into the Id the -whyalive/-whydead
// flags name, following internal/preprocess.Index.ExternalId's own
// (module, name) -> Id scheme (label.Synthesize), since that's the only
// stable way to name an identifier from outside the index.
func resolveTarget(s string) (label.Id, error) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return label.Id{}, fmt.Errorf("want module.name, got %q", s)
	}
	return label.Synthesize(s[:i], s[i+1:]), nil
}

func explainLiveness(res *deadval.Result, target, flagName string) {
	id, err := resolveTarget(target)
	if err != nil {
		log.Fatalf("-%s: %v", flagName, err)
	}
	node := depgraph.IdNode(id)
	path, ok := report.PathFromTop(res.Graph, node)
	if !ok {
		fmt.Printf("%s: no path: the node is Bot\n", target)
		return
	}
	if len(path) == 0 {
		fmt.Printf("%s is a root\n", target)
		return
	}

	type jsonStep struct {
		From string
		To   string
	}
	var steps []any
	for _, s := range path {
		steps = append(steps, jsonStep{From: s.From.String(), To: s.To.String()})
	}
	format := `{{printf "%s --> %s" .From .To}}`
	if *formatFlag != "" {
		format = *formatFlag
	}
	printObjects(format, steps)
}

func printWarnings(ws []report.Warning) {
	var objects []any
	for _, w := range ws {
		objects = append(objects, w)
	}
	format := `{{.File}}:{{.Line}}: warning: {{.Message}} [{{.Kind}}]
{{.Excerpt}}
`
	if *formatFlag != "" {
		format = *formatFlag
	}
	printObjects(format, objects)
}

// printObjects formats an array of objects, either as JSON or using a
// template, following the manner of 'go list (-json|-f=template)'.
func printObjects(format string, objects []any) {
	if *jsonFlag {
		out, err := json.MarshalIndent(objects, "", "\t")
		if err != nil {
			log.Fatalf("internal error: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	tmpl := template.Must(template.New("deadval").Parse(format))
	for _, object := range objects {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, object); err != nil {
			log.Fatal(err)
		}
		if n := buf.Len(); n == 0 || buf.Bytes()[n-1] != '\n' {
			buf.WriteByte('\n')
		}
		os.Stdout.Write(buf.Bytes())
	}
}

// writeBack splices a dead-value comment marker after every warning's
// byte range, grouped by source file, and rewrites each file in
// place. Warnings within one file are spliced from the end backwards
// so earlier byte offsets stay valid as later insertions shift the
// tail of the slice.
func writeBack(ws []report.Warning, byFile map[string]*artifact.CompilationUnit) error {
	byPath := make(map[string][]report.Warning)
	for _, w := range ws {
		byPath[w.File] = append(byPath[w.File], w)
	}
	for path, fileWarnings := range byPath {
		u, ok := byFile[path]
		if !ok || u.Source == nil {
			continue
		}
		sort.Slice(fileWarnings, func(i, j int) bool { return fileWarnings[i].End > fileWarnings[j].End })
		out := append([]byte(nil), u.Source...)
		for _, w := range fileWarnings {
			marker := []byte(" (* deadval: dead value: " + w.Message + " *)")
			if w.End < 0 || w.End > len(out) {
				continue
			}
			out = append(out[:w.End:w.End], append(marker, out[w.End:]...)...)
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func dumpDebug(res *deadval.Result) {
	var keys []string
	sizes := make(map[string]int)
	for k, vs := range res.Context.C {
		s := k.String()
		keys = append(keys, s)
		if vs.IsTop() {
			sizes[s] = -1
		} else {
			sizes[s] = vs.Len()
		}
	}
	sort.Strings(keys)
	fmt.Fprintln(os.Stderr, "# closure map (key -> value-set size, -1 = Top)")
	for _, k := range keys {
		fmt.Fprintf(os.Stderr, "%s\t%d\n", k, sizes[k])
	}
	fmt.Fprintf(os.Stderr, "# pending reductions: %d\n", len(res.Context.Reductions))

	nodes := res.Graph.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].String() < nodes[j].String() })
	fmt.Fprintln(os.Stderr, "# liveness map")
	for _, n := range nodes {
		fmt.Fprintf(os.Stderr, "%s\t%s\n", n, res.Liveness[n])
	}
}
