// Package main implements the valueset CLI: expand value sets and
// validate codes against a terminology store loaded from definition
// files.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofhir/valueset/service"
	"github.com/gofhir/valueset/terminology"
	"github.com/gofhir/valueset/worker"
)

const (
	version = "0.1.0"
	usage   = `valueset - value set expansion and code validation

Usage:
  valueset [options] <canonical-url>...
  valueset [options] -system <system> -code <code> [-valueset <url>]

Examples:
  valueset http://hl7.org/fhir/ValueSet/administrative-gender
  valueset -defs ./terminology http://example.org/vs/severity
  valueset -output json http://hl7.org/fhir/ValueSet/observation-status
  valueset -system http://hl7.org/fhir/administrative-gender -code male
  valueset -system http://loinc.org -code 1234-5 -valueset http://example.org/vs/labs

Options:
`
)

// OutputFormat specifies the output format.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Config holds CLI configuration.
type Config struct {
	DefsDir     string
	System      string
	Code        string
	ValueSetURL string
	Output      OutputFormat
	Workers     int
	NoCache     bool
	Quiet       bool
	ShowVersion bool
	Help        bool
	URLs        []string
}

// ExpansionOutput is the JSON output for one expansion.
type ExpansionOutput struct {
	URL      string         `json:"url"`
	Total    int            `json:"total"`
	Contains []CodingOutput `json:"contains,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration string         `json:"duration"`
}

// CodingOutput is one code in an expansion.
type CodingOutput struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// ValidationOutput is the JSON output for a code validation.
type ValidationOutput struct {
	System   string `json:"system"`
	Code     string `json:"code"`
	ValueSet string `json:"valueSet,omitempty"`
	Valid    bool   `json:"valid"`
	Display  string `json:"display,omitempty"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("valueset v%s\n", version)
		os.Exit(0)
	}

	validating := config.Code != ""
	if config.Help || (!validating && len(config.URLs) == 0) {
		flag.Usage()
		os.Exit(0)
	}

	os.Exit(run(config))
}

func parseFlags() *Config {
	config := &Config{Output: OutputText}

	var output string

	flag.StringVar(&config.DefsDir, "defs", "", "Directory of terminology definition files (.json, .yaml)")
	flag.StringVar(&config.System, "system", "", "Code system URL for validation")
	flag.StringVar(&config.Code, "code", "", "Code to validate")
	flag.StringVar(&config.ValueSetURL, "valueset", "", "Value set URL to validate against (optional)")
	flag.StringVar(&output, "output", "text", "Output format: text, json")
	flag.IntVar(&config.Workers, "workers", 0, "Expansion workers for multiple URLs (0 = number of CPUs)")
	flag.BoolVar(&config.NoCache, "no-cache", false, "Disable the expansion/validation cache")
	flag.BoolVar(&config.Quiet, "quiet", false, "Suppress progress output")
	flag.BoolVar(&config.ShowVersion, "v", false, "Show version")
	flag.BoolVar(&config.Help, "help", false, "Show help")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}

	flag.Parse()

	switch strings.ToLower(output) {
	case "json":
		config.Output = OutputJSON
	default:
		config.Output = OutputText
	}

	config.URLs = flag.Args()
	return config
}

func run(config *Config) int {
	store := terminology.NewStore()

	if config.DefsDir != "" {
		stats, err := store.LoadDefinitions(os.DirFS(config.DefsDir))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load definitions: %v\n", err)
			return 1
		}
		if !config.Quiet {
			fmt.Fprintf(os.Stderr, "Loaded %d code system(s) and %d value set(s) from %d file(s)\n",
				stats.CodeSystems, stats.ValueSets, stats.Files)
		}
	}

	var svc service.TerminologyService = store
	if !config.NoCache {
		svc = terminology.NewCachedStore(store, terminology.CacheConfig{})
	}

	if config.Code != "" {
		return runValidate(svc, config)
	}
	return runExpand(svc, config)
}

func runValidate(svc service.TerminologyService, config *Config) int {
	ctx := context.Background()
	start := time.Now()

	result, err := svc.ValidateCode(ctx, config.System, config.Code, config.ValueSetURL)
	duration := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	output := ValidationOutput{
		System:   config.System,
		Code:     config.Code,
		ValueSet: config.ValueSetURL,
		Valid:    result.Valid,
		Display:  result.Display,
		Message:  result.Message,
		Duration: duration.Round(time.Microsecond).String(),
	}

	if config.Output == OutputJSON {
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
	} else {
		printValidationText(output)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runExpand(svc service.TerminologyService, config *Config) int {
	ctx := context.Background()

	if !config.Quiet {
		fmt.Fprintf(os.Stderr, "Expanding %d value set(s)...\n\n", len(config.URLs))
	}

	batch := worker.NewBatchExpander(svc.ExpandValueSet, config.Workers).ExpandBatch(ctx, config.URLs)

	outputs := make([]ExpansionOutput, 0, len(batch.Results))
	for _, r := range batch.Results {
		if r == nil {
			continue
		}
		output := ExpansionOutput{
			URL:      r.URL,
			Duration: r.Duration.Round(time.Microsecond).String(),
		}
		if r.Err != nil {
			output.Error = r.Err.Error()
		} else {
			output.Total = r.Expansion.Len()
			for _, c := range r.Expansion.Contains {
				output.Contains = append(output.Contains, CodingOutput{
					System:  c.System,
					Code:    c.Code,
					Display: c.Display,
				})
			}
		}
		outputs = append(outputs, output)
	}

	if config.Output == OutputJSON {
		data, _ := json.MarshalIndent(outputs, "", "  ")
		fmt.Println(string(data))
	} else {
		for _, output := range outputs {
			printExpansionText(output)
		}
	}

	if batch.HasFailures() {
		return 1
	}
	return 0
}

func printValidationText(output ValidationOutput) {
	status := "VALID"
	if !output.Valid {
		status = "INVALID"
	}

	fmt.Printf("== %s | %s ==\n", output.System, output.Code)
	if output.ValueSet != "" {
		fmt.Printf("Value set: %s\n", output.ValueSet)
	}
	fmt.Printf("Status: %s\n", status)
	if output.Display != "" {
		fmt.Printf("Display: %s\n", output.Display)
	}
	if output.Message != "" {
		fmt.Printf("Message: %s\n", output.Message)
	}
	fmt.Printf("Duration: %s\n", output.Duration)
}

func printExpansionText(output ExpansionOutput) {
	fmt.Printf("== %s ==\n", output.URL)
	if output.Error != "" {
		fmt.Printf("Error: %s\n", output.Error)
		fmt.Println()
		return
	}

	fmt.Printf("Total: %d\n", output.Total)
	fmt.Printf("Duration: %s\n", output.Duration)
	for _, c := range output.Contains {
		display := ""
		if c.Display != "" {
			display = fmt.Sprintf("  %q", c.Display)
		}
		fmt.Printf("  %s | %s%s\n", c.System, c.Code, display)
	}
	fmt.Println()
}
