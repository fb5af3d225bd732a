//go:build ignore

// Package main compares Go benchmark output against a baseline and fails on
// regressions. Used to keep search and ingestion latency honest in CI.
// Usage: go run scripts/bench-compare.go <current.txt> <baseline.txt>
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

var (
	outputJSON    = flag.Bool("json", false, "Output results as JSON")
	threshold     = flag.Float64("threshold", 0.20, "Regression threshold (fraction of baseline ns/op)")
	verbose       = flag.Bool("verbose", false, "Show all benchmark comparisons")
	failOnRegress = flag.Bool("fail", true, "Exit with code 1 on regression")
)

// improvementThreshold highlights benchmarks that got meaningfully faster.
const improvementThreshold = 0.10

// benchLine matches standard Go benchmark output:
// BenchmarkName-N   iterations   ns/op ...
var benchLine = regexp.MustCompile(`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op`)

type benchResult struct {
	Name    string  `json:"name"`
	NsPerOp float64 `json:"ns_per_op"`
}

type comparison struct {
	Name     string  `json:"name"`
	Current  float64 `json:"current_ns_per_op"`
	Baseline float64 `json:"baseline_ns_per_op"`
	DeltaPct float64 `json:"delta_percent"`
	Status   string  `json:"status"`
}

type report struct {
	Total        int           `json:"total_benchmarks"`
	Regressions  int           `json:"regressions"`
	Improvements int           `json:"improvements"`
	Unchanged    int           `json:"unchanged"`
	New          int           `json:"new_benchmarks"`
	Missing      int           `json:"missing_from_current"`
	Results      []*comparison `json:"results"`
	Failed       bool          `json:"regression_failed"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <current.txt> <baseline.txt>\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	current, err := parseFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
	baseline, err := parseFile(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}

	rep := compare(current, baseline)

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(1)
		}
	} else {
		printReport(rep)
	}

	if *failOnRegress && rep.Failed {
		os.Exit(1)
	}
}

func parseFile(path string) (map[string]*benchResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	results := make(map[string]*benchResult)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := benchLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		ns, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		results[m[1]] = &benchResult{Name: m[1], NsPerOp: ns}
	}
	return results, scanner.Err()
}

func compare(current, baseline map[string]*benchResult) *report {
	rep := &report{}

	for name, curr := range current {
		rep.Total++

		base, ok := baseline[name]
		if !ok {
			rep.New++
			if *verbose {
				rep.Results = append(rep.Results, &comparison{
					Name: name, Current: curr.NsPerOp, Status: "NEW",
				})
			}
			continue
		}

		delta := 0.0
		if base.NsPerOp > 0 {
			delta = (curr.NsPerOp - base.NsPerOp) / base.NsPerOp
		}

		c := &comparison{
			Name:     name,
			Current:  curr.NsPerOp,
			Baseline: base.NsPerOp,
			DeltaPct: delta * 100,
		}

		switch {
		case delta > *threshold:
			c.Status = "REGRESSION"
			rep.Regressions++
			rep.Failed = true
		case delta < -improvementThreshold:
			c.Status = "IMPROVED"
			rep.Improvements++
		default:
			c.Status = "OK"
			rep.Unchanged++
		}

		if c.Status != "OK" || *verbose {
			rep.Results = append(rep.Results, c)
		}
	}

	for name, base := range baseline {
		if _, ok := current[name]; !ok {
			rep.Missing++
			if *verbose {
				rep.Results = append(rep.Results, &comparison{
					Name: name, Baseline: base.NsPerOp, Status: "MISSING",
				})
			}
		}
	}

	return rep
}

func printReport(rep *report) {
	fmt.Printf("benchmarks: %d  regressions: %d  improvements: %d  unchanged: %d  new: %d  missing: %d\n\n",
		rep.Total, rep.Regressions, rep.Improvements, rep.Unchanged, rep.New, rep.Missing)

	for _, c := range rep.Results {
		if c.Baseline > 0 {
			fmt.Printf("%-12s %-50s %10.0f ns -> %10.0f ns (%+.1f%%)\n",
				c.Status, c.Name, c.Baseline, c.Current, c.DeltaPct)
		} else {
			fmt.Printf("%-12s %-50s %10.0f ns\n", c.Status, c.Name, c.Current)
		}
	}

	fmt.Println()
	if rep.Failed {
		fmt.Printf("FAILED: %d benchmark(s) regressed by more than %.0f%%\n", rep.Regressions, *threshold*100)
	} else {
		fmt.Println("PASSED: no significant regressions")
	}
}
