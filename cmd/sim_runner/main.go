package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/KernelFreeze/photondb/simulator"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "", "Path to JSON configuration file (defaults apply if omitted)")
	epochs := flag.Int("epochs", 1000, "Number of epochs to simulate")
	outputFile := flag.String("output", "", "Path to output JSON file (optional, prints to stdout if not specified)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging from simulator")
	flag.Parse()

	config := simulator.DefaultConfig()
	if *configFile != "" {
		configData, err := os.ReadFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(configData, &config); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing config JSON: %v\n", err)
			os.Exit(1)
		}
	}

	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	sim, err := simulator.NewSimulator(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating simulator: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		sim.LogEvent = func(msg string) {
			fmt.Fprintf(os.Stderr, "[SIM] %s\n", msg)
		}
		fmt.Fprintf(os.Stderr, "Verbose logging enabled\n")
	}

	fmt.Fprintf(os.Stderr, "Starting simulation for %d epochs...\n", *epochs)
	startTime := time.Now()

	for i := 0; i < *epochs; i++ {
		sim.Step()
	}

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "Simulation completed in %v (%d epochs)\n", elapsed, sim.Epoch())

	stats := sim.Stats()
	results := map[string]interface{}{
		"config":   config,
		"epochs":   sim.Epoch(),
		"realTime": elapsed.Seconds(),
		"stats":    stats,
		"display":  stats.String(),
		"state":    sim.State(),
	}

	output, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling results: %v\n", err)
		os.Exit(1)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Results written to %s\n", *outputFile)
	} else {
		fmt.Println(string(output))
	}
}
