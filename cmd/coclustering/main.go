// Command coclustering runs the MDL coclustering engine against a CSV data
// file and writes a .khc report (spec.md §6's CLI).
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/invertedv/chutils/file"

	coclust "github.com/invertedv/coclustering"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run implements the -d -i -o -f -m -e CLI of spec.md §6, returning the
// process exit code: 0 on success, non-zero on any unrecoverable failure.
// Warnings are written to the error log but never change the exit code.
func run(args []string) int {
	fs := flag.NewFlagSet("coclustering", flag.ContinueOnError)

	var (
		dict     string
		dictName string
		input    string
		output   string
		sep      string
		memoryMB int64
		errLog   string
	)

	fs.StringVar(&dict, "d", "", "dictionary file (schema CSV: name,kind per line)")
	fs.StringVar(&input, "i", "", "input data file")
	fs.StringVar(&output, "o", "", "report file (.khc)")
	fs.StringVar(&sep, "f", "\t", "field separator")
	fs.Int64Var(&memoryMB, "m", 0, "memory cap in MB (0 = default)")
	fs.StringVar(&errLog, "e", "", "error log file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if rest := fs.Args(); len(rest) > 0 {
		dictName = rest[0]

		// flag stops at the first positional argument; parse the flags
		// that follow <name> as well.
		if err := fs.Parse(rest[1:]); err != nil {
			return 2
		}
	}

	if dict == "" || input == "" || output == "" {
		fmt.Fprintln(os.Stderr, "usage: coclustering -d <dict> <name> -i <data> -o <report> [-f sep] [-m MB] [-e log]")
		return 2
	}

	var logFile *os.File

	if errLog != "" {
		f, err := os.Create(errLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening error log: %v\n", err)
			return 1
		}

		defer f.Close()

		logFile = f
	}

	opts := []coclust.EngineOption{
		coclust.WithFieldSeparator(sep[0]),
	}

	if logFile != nil {
		opts = append(opts, coclust.WithLogWriter(logFile))
	}

	if memoryMB > 0 {
		opts = append(opts, coclust.WithMemoryBudget(memoryMB<<20))
	}

	engine := coclust.NewEngine(opts...)

	schema, err := loadSchema(dict, dictName)
	if err != nil {
		engine.Errorf("loading dictionary %s: %v", dict, err)
		return 1
	}

	rdr := file.NewReader(input, sep[0], '\n', 0, 0, 1, 0, nil, 0)
	if err := rdr.Init(); err != nil {
		engine.Errorf("opening input %s: %v", input, err)
		return 1
	}

	defer rdr.Close()

	src := coclust.NewChRowSource(rdr)

	ts, err := coclust.NewTupleStore(engine, src, schema)
	if err != nil {
		engine.Errorf("loading tuple store: %v", err)
		return 1
	}

	cost := coclust.NewCostModel(ts)

	result, err := coclust.Optimize(engine, ts, cost, nil)
	if err != nil {
		engine.Errorf("optimizing: %v", err)
		return 1
	}

	if result.Best == nil {
		engine.Warnf("result", "grid is not informative")
		return 0
	}

	if err := coclust.BuildHierarchy(ts, result.Best, cost, result.NullCost, result.BestCost); err != nil {
		engine.Errorf("building hierarchy: %v", err)
		return 1
	}

	report := coclust.NewHierarchicalDataGrid(ts, result.Best, cost)

	if err := report.WriteKHC(output); err != nil {
		engine.Errorf("writing report: %v", err)
		return 1
	}

	return 0
}

// loadSchema parses a dictionary file of "name,kind" lines into a Schema.
// This is the CLI's own minimal dictionary format, not a wire protocol the
// spec defines; a real collaborator would supply a Schema programmatically.
func loadSchema(path, name string) (coclust.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return coclust.Schema{}, err
	}

	var schema coclust.Schema

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.SplitN(line, ",", 2)
		if len(fields) != 2 {
			continue
		}

		kind := coclust.Numeric
		if strings.EqualFold(strings.TrimSpace(fields[1]), "categorical") {
			kind = coclust.Categorical
		}

		schema.Attributes = append(schema.Attributes, coclust.AttributeDef{
			Name: strings.TrimSpace(fields[0]),
			Kind: kind,
		})
	}

	if err := schema.Validate(); err != nil {
		return coclust.Schema{}, err
	}

	_ = name

	return schema, nil
}
