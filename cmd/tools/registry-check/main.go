// cmd/tools/registry-check/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"academy-notifications/internal/common/validation"
	"academy-notifications/pkg/registry"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check-input", flag.ExitOnError)

	validatePath := validateCmd.String("path", "", "Path to registry file (default: built-in registry)")
	listPath := listCmd.String("path", "", "Path to registry file (default: built-in registry)")
	checkPath := checkCmd.String("path", "", "Path to registry file (default: built-in registry)")
	taskType := checkCmd.String("taskType", "", "Task type whose input schema to check against")
	input := checkCmd.String("input", "{}", "Job variables as JSON")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg := load(*validatePath)
		if err := reg.Validate(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	case "list":
		listCmd.Parse(os.Args[2:])
		reg := load(*listPath)
		for _, a := range reg.Activities {
			fmt.Printf("%-28s %-14s timeout=%-6s retries=%d\n", a.TaskType, a.Category, a.Timeout, a.Retries)
		}

	case "check-input":
		checkCmd.Parse(os.Args[2:])
		if *taskType == "" {
			fmt.Println("Error: taskType is required for check-input.")
			checkCmd.Usage()
			os.Exit(1)
		}
		reg := load(*checkPath)
		if _, ok := reg.Find(*taskType); !ok {
			fmt.Printf("Unknown task type: %s\n", *taskType)
			os.Exit(1)
		}
		result, err := validation.ValidateJSON(*input, reg.InputSchema(*taskType))
		if err != nil {
			fmt.Printf("Input could not be checked: %v\n", err)
			os.Exit(1)
		}
		if !result.Valid {
			for _, e := range result.Errors {
				fmt.Printf("  %s: %s (%s)\n", e.Field, e.Message, e.Code)
			}
			os.Exit(1)
		}
		fmt.Println("Input is valid.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func load(path string) *registry.ActivityRegistry {
	reg, err := registry.Load(path)
	if err != nil {
		fmt.Printf("Error loading registry: %v\n", err)
		os.Exit(1)
	}
	return reg
}

func help() {
	fmt.Print(`
Usage: registry-check <command> [flags]

Commands:
  validate     Validate the activity registry
  list         List registered task types
  check-input  Check job variables against a task type's input schema
  help         Show this help message

Examples:
  registry-check validate -path configs/activities.json
  registry-check check-input -taskType enqueue-notification -input '{"title":"Hi","body":"New course"}'
` + "\n")
}
