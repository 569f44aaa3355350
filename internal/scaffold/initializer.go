// Package scaffold creates a starter retinue project: a retinue.yml and a
// content directory seeded with the built-in strings.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/retinue/internal/content"
	"github.com/dyluth/retinue/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// Paths created by Initialize, relative to the project directory
const (
	ConfigFile = "retinue.yml"
	ContentDir = "content"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize creates the project structure in dir.
// If force is true, it removes an existing retinue.yml and content/ first.
func Initialize(dir string, force bool) error {
	if force {
		if err := handleForce(dir); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles()
	if err != nil {
		return err
	}

	if err := writeFiles(dir, files); err != nil {
		return err
	}

	return validateCreatedFiles(dir)
}

// handleForce removes existing files if --force was specified
func handleForce(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err == nil {
		printer.Warning("Removing existing %s...\n", ConfigFile)
		if err := os.Remove(filepath.Join(dir, ConfigFile)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", ConfigFile, err)
		}
	}

	if info, err := os.Stat(filepath.Join(dir, ContentDir)); err == nil && info.IsDir() {
		printer.Warning("Removing existing %s/ directory...\n", ContentDir)
		if err := os.RemoveAll(filepath.Join(dir, ContentDir)); err != nil {
			return fmt.Errorf("failed to remove %s/ directory: %w", ContentDir, err)
		}
	}

	return nil
}

// getTemplateFiles reads the templates and renders the built-in string table
func getTemplateFiles() ([]FileInfo, error) {
	cfg, err := templatesFS.ReadFile("templates/retinue.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read retinue.yml template: %w", err)
	}

	dialogue, err := templatesFS.ReadFile("templates/Abigail.yaml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read dialogue template: %w", err)
	}

	table, err := content.Builtin.LoadStrings("Strings/Strings")
	if err != nil {
		return nil, err
	}
	stringsYAML, err := yaml.Marshal(table)
	if err != nil {
		return nil, fmt.Errorf("failed to render Strings.yaml: %w", err)
	}

	return []FileInfo{
		{Path: ConfigFile, Content: cfg, Permissions: 0644},
		{Path: filepath.Join(ContentDir, "Strings", "Strings.yaml"), Content: stringsYAML, Permissions: 0644},
		{Path: filepath.Join(ContentDir, "Dialogue", "Abigail.yaml"), Content: dialogue, Permissions: 0644},
	}, nil
}

// writeFiles writes all files under dir, creating parent directories
func writeFiles(dir string, files []FileInfo) error {
	for _, file := range files {
		path := filepath.Join(dir, file.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	return nil
}

// validateCreatedFiles checks that retinue.yml is valid YAML
func validateCreatedFiles(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", ConfigFile, err)
	}

	var yamlData interface{}
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return fmt.Errorf("created %s is not valid YAML: %w", ConfigFile, err)
	}

	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess() {
	printer.Success("\nInitialized retinue project!\n")
	printer.Println("\nCreated:")
	printer.Println("  ✓ " + ConfigFile)
	printer.Println("  ✓ content/Strings/Strings.yaml")
	printer.Println("  ✓ content/Dialogue/Abigail.yaml")
	printer.Println("\nNext steps:")
	printer.Println("  1. Edit retinue.yml to list your companions")
	printer.Println("  2. Run 'retinue up' to start a Redis broker")
	printer.Println("  3. Run 'retinue host', then 'retinue join' on the other machines")
}
