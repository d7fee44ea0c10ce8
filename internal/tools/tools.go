// Package tools defines the closed set of CLI tools whose configuration
// confdrift manages: Claude Code, Codex and Gemini CLI. Each tool carries
// its config directory, its active file set and the file formats involved.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ID identifies one of the supported tools.
type ID string

const (
	ClaudeCode ID = "claude-code"
	Codex      ID = "codex"
	GeminiCLI  ID = "gemini-cli"
)

// Format is the on-disk format of a config file.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatEnv  Format = "env"
)

// File is one file of a tool's active config set.
type File struct {
	Name   string
	Format Format
}

// Tool describes a managed CLI tool. Files lists the active config set,
// primary file first; the primary file drives backup discovery.
type Tool struct {
	ID        ID
	Name      string
	ConfigDir string
	Files     []File
}

// All returns the registry of supported tools rooted at the user's home
// directory.
func All() []Tool {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return AllIn(home)
}

// AllIn returns the registry with config directories rooted at home.
// Tests use this to point tools at temp directories.
func AllIn(home string) []Tool {
	return []Tool{
		{
			ID:        ClaudeCode,
			Name:      "Claude Code",
			ConfigDir: filepath.Join(home, ".claude"),
			Files: []File{
				{Name: "settings.json", Format: FormatJSON},
			},
		},
		{
			ID:        Codex,
			Name:      "Codex",
			ConfigDir: filepath.Join(home, ".codex"),
			Files: []File{
				{Name: "config.toml", Format: FormatTOML},
				{Name: "auth.json", Format: FormatJSON},
			},
		},
		{
			ID:        GeminiCLI,
			Name:      "Gemini CLI",
			ConfigDir: filepath.Join(home, ".gemini"),
			Files: []File{
				{Name: ".env", Format: FormatEnv},
				{Name: "settings.json", Format: FormatJSON},
			},
		},
	}
}

// ByID looks up a tool in the default registry.
func ByID(id ID) (Tool, bool) {
	return ByIDIn(All(), id)
}

// ByIDIn looks up a tool in an explicit registry.
func ByIDIn(registry []Tool, id ID) (Tool, bool) {
	for _, t := range registry {
		if t.ID == id {
			return t, true
		}
	}
	return Tool{}, false
}

// Primary returns the tool's primary config file.
func (t Tool) Primary() File {
	return t.Files[0]
}

// FilePath returns the absolute path of one of the tool's config files.
func (t Tool) FilePath(name string) string {
	return filepath.Join(t.ConfigDir, name)
}

// SplitName splits a config file name into basename and extension.
// Dotfiles without a second dot (".env") are all basename.
func SplitName(name string) (base, ext string) {
	ext = filepath.Ext(name)
	if ext == name {
		// ".env" style dotfile
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

// BackupFileName derives the backup file name for a profile:
// settings.json + "work" -> settings.work.json, .env + "work" -> .env.work.
func BackupFileName(activeName, profile string) string {
	base, ext := SplitName(activeName)
	if ext == "" {
		return base + "." + profile
	}
	return base + "." + profile + ext
}

// ValidateProfileName rejects names that cannot be embedded in a backup
// file name or that would collide with the active file itself.
func ValidateProfileName(t Tool, name string) error {
	if name == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	if strings.ContainsAny(name, "/\\") || name == ".." {
		return fmt.Errorf("profile name %q must not contain path separators", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("profile name %q must not start with a dot", name)
	}
	for _, f := range t.Files {
		base, _ := SplitName(f.Name)
		if name == base {
			return fmt.Errorf("profile name %q collides with active basename %s", name, base)
		}
	}
	return nil
}
