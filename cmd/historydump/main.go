// historydump is a one-shot diagnostic CLI that queries a running
// fieldwatch-agent's HTTP API for its full modification history and
// prints a human-readable summary, the same "fetch, build a Report,
// print JSON + summary" shape as the teacher's own transport diagnostic
// tool, pointed at GET /v1/export instead of a local transport probe.
package main

import (
	"compress/gzip"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
)

// Report is the shape historydump prints, built from the server's
// gzip-encoded /v1/export response.
type Report struct {
	Endpoint           string          `json:"endpoint"`
	FieldCount         int             `json:"field_count"`
	ContainerCount     int             `json:"container_count"`
	TotalFieldMods     int             `json:"total_field_modifications"`
	TotalContainerMods int             `json:"total_container_modifications"`
	Fields             json.RawMessage `json:"fields,omitempty"`
	Containers         json.RawMessage `json:"containers,omitempty"`
}

func main() {
	var addr string
	var verbose bool
	flag.StringVar(&addr, "addr", "http://127.0.0.1:8401", "Base address of the fieldwatch-agent HTTP API")
	flag.BoolVar(&verbose, "verbose", false, "Include the full field/container payload in the printed report")
	flag.Parse()

	report, err := fetchReport(addr, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "historydump: %v\n", err)
		os.Exit(1)
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "historydump: failed to marshal report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("Fields tracked: %d (%d modifications)\n", report.FieldCount, report.TotalFieldMods)
	fmt.Printf("Containers tracked: %d (%d modifications)\n", report.ContainerCount, report.TotalContainerMods)
}

func fetchReport(addr string, verbose bool) (*Report, error) {
	endpoint := addr + "/v1/export"

	resp, err := http.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}

	reader := resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decode gzip response: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	var raw struct {
		Fields     []json.RawMessage `json:"fields"`
		Containers []json.RawMessage `json:"containers"`
	}
	if err := json.NewDecoder(reader).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode export payload: %w", err)
	}

	report := &Report{
		Endpoint:       endpoint,
		FieldCount:     len(raw.Fields),
		ContainerCount: len(raw.Containers),
	}
	for _, f := range raw.Fields {
		var view struct {
			Modifications []json.RawMessage `json:"modifications"`
		}
		if err := json.Unmarshal(f, &view); err == nil {
			report.TotalFieldMods += len(view.Modifications)
		}
	}
	for _, c := range raw.Containers {
		var view struct {
			Modifications []json.RawMessage `json:"modifications"`
		}
		if err := json.Unmarshal(c, &view); err == nil {
			report.TotalContainerMods += len(view.Modifications)
		}
	}

	if verbose {
		fieldsJSON, _ := json.Marshal(raw.Fields)
		containersJSON, _ := json.Marshal(raw.Containers)
		report.Fields = fieldsJSON
		report.Containers = containersJSON
	}

	return report, nil
}
