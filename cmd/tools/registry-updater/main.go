// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dealroom-supervisor/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export-defaults", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd, exportCmd} {
		fs.StringVar(&registryPath, "path", "configs/specialists.yaml", "Path to specialist registry file")
	}

	// Add command flags
	idAdd := addCmd.String("id", "", "Specialist ID (e.g., legal_reviewer)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Legal Reviewer)")
	description := addCmd.String("description", "", "Description")
	endpoint := addCmd.String("endpoint", "", "Agent endpoint path; empty for the generic path only")
	keywords := addCmd.String("keywords", "", "Comma-separated routing keywords")
	rolePrompt := addCmd.String("rolePrompt", "", "System prompt for the generic path")
	priority := addCmd.Int("priority", 50, "Ordering in combined answers; lower comes first")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Specialist ID to update")
	field := updateCmd.String("field", "", "Field to update (displayName, description, endpoint, keywords, rolePrompt, priority)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *rolePrompt == "" {
			fmt.Println("Error: id and rolePrompt are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		spec := registry.Specialist{
			ID:          *idAdd,
			DisplayName: *displayName,
			Description: *description,
			Endpoint:    *endpoint,
			Keywords:    splitList(*keywords),
			RolePrompt:  *rolePrompt,
			Priority:    *priority,
		}
		if err := addSpecialist(registryPath, spec); err != nil {
			fmt.Printf("Error adding specialist: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added specialist: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" {
			fmt.Println("Error: id and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateSpecialist(registryPath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating specialist: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated specialist %s, field %s to %q\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d specialists, fallback %s.\n", len(reg.Specialists), reg.Fallback)

	case "export-defaults":
		exportCmd.Parse(os.Args[2:])
		if err := saveRegistry(registry.Default(), registryPath); err != nil {
			fmt.Printf("Error exporting registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote built-in registry to %s\n", registryPath)

	case "help":
		fallthrough
	default:
		help()
	}
}

func addSpecialist(path string, spec registry.Specialist) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = registry.Default()
	}

	if _, exists := reg.Get(spec.ID); exists {
		return fmt.Errorf("specialist with ID %s already exists", spec.ID)
	}

	reg.Specialists = append(reg.Specialists, spec)
	return saveRegistry(reg, path)
}

func updateSpecialist(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	spec, ok := reg.Get(id)
	if !ok {
		return fmt.Errorf("specialist with ID %s not found", id)
	}

	switch field {
	case "displayName":
		spec.DisplayName = value
	case "description":
		spec.Description = value
	case "endpoint":
		spec.Endpoint = value
	case "keywords":
		spec.Keywords = splitList(value)
	case "rolePrompt":
		if value == "" {
			return fmt.Errorf("rolePrompt cannot be empty")
		}
		spec.RolePrompt = value
	case "priority":
		p, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid priority value: %w", err)
		}
		spec.Priority = p
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	return saveRegistry(reg, path)
}

// saveRegistry validates, stamps and writes the registry as YAML.
func saveRegistry(reg *registry.SpecialistRegistry, path string) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid registry: %w", err)
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add              Add a specialist to the registry
  update           Update one field of an existing specialist
  validate         Validate the registry file
  export-defaults  Write the built-in registry to a file
  help             Show this help message

Examples:
  registry-updater export-defaults -path configs/specialists.yaml
  registry-updater add -id legal_reviewer -displayName "Legal Reviewer" -endpoint /api/agents/legal-reviewer -keywords "indemnity,warranty,change of control" -rolePrompt "You are a legal reviewer..." -priority 30
  registry-updater update -id legal_reviewer -field priority -value 15
  registry-updater validate -path configs/specialists.yaml

Use 'registry-updater <command> -h' for more information about a command.`)
}
