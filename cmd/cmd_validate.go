package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dosco/reljin/core"
	"github.com/dosco/reljin/serv"
)

var (
	validateVerbose bool
	validateJSON    bool
)

// ValidateResult holds the overall validation results
type ValidateResult struct {
	Success  bool            `json:"success"`
	Services []ServiceStatus `json:"services"`
	Error    string          `json:"error,omitempty"`
	Duration string          `json:"duration"`
}

// ServiceStatus holds the status of a single check
type ServiceStatus struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Note    string `json:"note,omitempty"`
}

func validateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "validate",
		Short: "Validate config and schema and test store connectivity",
		Long: `Validate the configuration and relation schema and test connectivity:
- Config file parses and names a database
- Schema file parses; every declared relation classifies and every
  relation target is a declared collection
- MongoDB is reachable

Exit codes:
  0 - Everything validated successfully
  1 - Configuration, schema or store validation failed`,
		Run: cmdValidate,
	}
	c.Flags().BoolVarP(&validateVerbose, "verbose", "v", false, "Show detailed output for each check")
	c.Flags().BoolVar(&validateJSON, "json", false, "Output results in JSON format")
	return c
}

func cmdValidate(cmd *cobra.Command, args []string) {
	startTime := time.Now()
	var services []ServiceStatus

	// Step 1: Load configuration
	conf, err := serv.ReadInConfig(cpath)
	if err != nil {
		outputFailure(err, services, startTime)
		os.Exit(1)
	}
	services = append(services, ServiceStatus{
		Name:   "config",
		Type:   "yaml",
		Status: "ok",
	})

	// Step 2: Load and validate the schema
	schemaStatus, err := validateSchema(conf)
	services = append(services, schemaStatus)
	if err != nil {
		outputFailure(err, services, startTime)
		os.Exit(1)
	}

	// Step 3: Connect to the store (retries and ping happen inside)
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	service, err := serv.NewService(ctx, conf)
	if err != nil {
		services = append(services, ServiceStatus{
			Name:   "database",
			Type:   "mongodb",
			Status: "failed",
			Note:   err.Error(),
		})
		outputFailure(err, services, startTime)
		os.Exit(1)
	}
	defer service.Close(ctx)

	services = append(services, ServiceStatus{
		Name:    "database",
		Type:    "mongodb",
		Status:  "ok",
		Latency: time.Since(start).String(),
	})

	// All checks passed
	outputSuccess(services, startTime)
}

// validateSchema parses the schema file and classifies every
// declared relation.
func validateSchema(conf *serv.Config) (ServiceStatus, error) {
	b, err := afero.ReadFile(afero.NewOsFs(), conf.SchemaFile)
	if err != nil {
		return failedStatus("schema", err), err
	}

	schema, err := core.ParseSchema(b)
	if err != nil {
		return failedStatus("schema", err), err
	}
	if err := schema.Validate(); err != nil {
		return failedStatus("schema", err), err
	}

	return ServiceStatus{
		Name:   "schema",
		Type:   "yaml",
		Status: "ok",
		Note:   fmt.Sprintf("%d collections", len(schema.Collections())),
	}, nil
}

func failedStatus(name string, err error) ServiceStatus {
	return ServiceStatus{
		Name:   name,
		Type:   "yaml",
		Status: "failed",
		Note:   err.Error(),
	}
}

func outputSuccess(services []ServiceStatus, start time.Time) {
	outputResult(ValidateResult{
		Success:  true,
		Services: services,
		Duration: time.Since(start).String(),
	})
}

func outputFailure(err error, services []ServiceStatus, start time.Time) {
	outputResult(ValidateResult{
		Success:  false,
		Services: services,
		Error:    err.Error(),
		Duration: time.Since(start).String(),
	})
}

func outputResult(result ValidateResult) {
	if validateJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	// Text output
	fmt.Println()
	for _, svc := range result.Services {
		status := "OK"
		if svc.Status == "failed" {
			status = "FAILED"
		}
		line := fmt.Sprintf("  %s (%s): %s", svc.Name, svc.Type, status)
		if svc.Latency != "" && validateVerbose {
			line += fmt.Sprintf(" [%s]", svc.Latency)
		}
		if svc.Note != "" {
			if svc.Status == "failed" || validateVerbose {
				line += fmt.Sprintf(" - %s", svc.Note)
			}
		}
		fmt.Println(line)
	}
	fmt.Println()

	if result.Success {
		fmt.Printf("All checks validated (%s)\n", result.Duration)
	} else {
		fmt.Printf("Validation failed: %s (%s)\n", result.Error, result.Duration)
	}
}
