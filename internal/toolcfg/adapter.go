// Package toolcfg implements the per-tool format adapters: loading a
// tool's active config files into normalized trees, merging managed field
// values into those trees without touching anything else, and writing the
// result back in the tool's native format.
package toolcfg

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/confdrift/confdrift/internal/cferrors"
	"github.com/confdrift/confdrift/internal/configtree"
	"github.com/confdrift/confdrift/internal/tools"
)

// Files maps an active-file name to its parsed tree. Backups load under
// the same keys as the active files they mirror.
type Files map[string]configtree.Tree

// Values are the managed field values a profile carries. Model is
// optional and only meaningful for codex and gemini-cli.
type Values struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model,omitempty"`
}

// Adapter is the per-tool config access contract. StoreManagedFields and
// ExtractValues are pure; the rest do file I/O.
type Adapter interface {
	Tool() tools.Tool

	// Load reads the active config file set. Missing files load as empty
	// trees.
	Load() (Files, error)

	// LoadBackup reads the backup file set for a profile, keyed by active
	// file name. Returns ErrNotFound if the primary backup is absent.
	LoadBackup(profile string) (Files, error)

	// StoreManagedFields returns a copy of files with the managed fields
	// overwritten from v. Every other path is left untouched.
	StoreManagedFields(files Files, v Values) Files

	// RestoreManagedFields returns a copy of current where every managed
	// path carries baseline's value, including absence: a managed path
	// missing from baseline is removed. Unmanaged paths in current are
	// left untouched. Unlike StoreManagedFields it applies no defaults.
	RestoreManagedFields(current, baseline Files) Files

	// ExtractValues pulls the managed field values out of a file set.
	// Returns ErrInvalidFormat if required managed keys are missing.
	ExtractValues(files Files) (Values, error)

	// WriteActive writes the file set to the tool's active locations.
	// On a multi-file tool a partial failure surfaces as
	// *cferrors.PartialWriteError.
	WriteActive(files Files) error

	// WriteBackup writes the file set under the profile's backup names.
	WriteBackup(profile string, files Files) error

	// DeleteBackup removes the profile's backup file(s).
	DeleteBackup(profile string) error

	// ListBackups returns the profile names present in the config dir,
	// sorted and deduplicated.
	ListBackups() ([]string, error)
}

// New returns the adapter for a tool. Selection is by tool identity; the
// set is closed.
func New(t tools.Tool) (Adapter, error) {
	switch t.ID {
	case tools.ClaudeCode:
		return &claudeAdapter{fileset{tool: t}}, nil
	case tools.Codex:
		return &codexAdapter{fileset{tool: t}}, nil
	case tools.GeminiCLI:
		return &geminiAdapter{fileset{tool: t}}, nil
	}
	return nil, fmt.Errorf("unknown tool %q", t.ID)
}

// fileset carries the file I/O shared by all adapters.
type fileset struct {
	tool tools.Tool
}

func (fs *fileset) Tool() tools.Tool { return fs.tool }

func (fs *fileset) Load() (Files, error) {
	out := make(Files, len(fs.tool.Files))
	for _, f := range fs.tool.Files {
		tree, err := readFile(fs.tool.FilePath(f.Name), f.Format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out[f.Name] = tree
	}
	return out, nil
}

func (fs *fileset) LoadBackup(profile string) (Files, error) {
	primary := fs.tool.Primary()
	primaryBackup := fs.tool.FilePath(tools.BackupFileName(primary.Name, profile))
	if _, err := os.Stat(primaryBackup); err != nil {
		if os.IsNotExist(err) {
			return nil, cferrors.NotFoundf("profile %q for %s", profile, fs.tool.ID)
		}
		return nil, cferrors.IOf("stat %s", primaryBackup)
	}

	out := make(Files, len(fs.tool.Files))
	for _, f := range fs.tool.Files {
		path := fs.tool.FilePath(tools.BackupFileName(f.Name, profile))
		tree, err := readFile(path, f.Format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out[f.Name] = tree
	}
	return out, nil
}

func (fs *fileset) WriteActive(files Files) error {
	return fs.writeFiles(files, func(name string) string { return name })
}

func (fs *fileset) WriteBackup(profile string, files Files) error {
	return fs.writeFiles(files, func(name string) string {
		return tools.BackupFileName(name, profile)
	})
}

// writeFiles writes the given trees in the tool's declared file order.
// A failure after at least one successful write is a PartialWriteError;
// the caller must not update the snapshot in that case.
func (fs *fileset) writeFiles(files Files, nameFor func(string) string) error {
	var succeeded []string
	failed := make(map[string]error)

	for _, f := range fs.tool.Files {
		tree, ok := files[f.Name]
		if !ok {
			continue
		}
		target := nameFor(f.Name)
		if err := writeFile(fs.tool.FilePath(target), f.Format, tree); err != nil {
			failed[target] = err
			continue
		}
		succeeded = append(succeeded, target)
	}

	if len(failed) == 0 {
		return nil
	}
	if len(succeeded) == 0 {
		for name, err := range failed {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return &cferrors.PartialWriteError{
		Tool:      string(fs.tool.ID),
		Succeeded: succeeded,
		Failed:    failed,
	}
}

func (fs *fileset) DeleteBackup(profile string) error {
	for _, f := range fs.tool.Files {
		path := fs.tool.FilePath(tools.BackupFileName(f.Name, profile))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return cferrors.IOf("remove %s", path)
		}
	}
	return nil
}

func (fs *fileset) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(fs.tool.ConfigDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cferrors.IOf("read dir %s", fs.tool.ConfigDir)
	}

	primary := fs.tool.Primary()
	base, ext := tools.SplitName(primary.Name)

	seen := make(map[string]struct{})
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == primary.Name || strings.HasSuffix(name, ".tmp") {
			continue
		}
		if !strings.HasPrefix(name, base+".") {
			continue
		}
		profile := strings.TrimPrefix(name, base+".")
		if ext != "" {
			if !strings.HasSuffix(profile, ext) {
				continue
			}
			profile = strings.TrimSuffix(profile, ext)
		}
		if profile == "" || strings.HasPrefix(profile, ".") {
			continue
		}
		if _, dup := seen[profile]; dup {
			continue
		}
		seen[profile] = struct{}{}
		names = append(names, profile)
	}

	sort.Strings(names)
	return names, nil
}

// cloneFiles deep-copies a file set, materializing an empty tree for every
// file in the tool's set so merges can assume presence.
func (fs *fileset) cloneFiles(files Files) Files {
	out := make(Files, len(fs.tool.Files))
	for _, f := range fs.tool.Files {
		if tree, ok := files[f.Name]; ok {
			out[f.Name] = configtree.CloneTree(tree)
		} else {
			out[f.Name] = configtree.Tree{}
		}
	}
	return out
}

// ensureMap returns tree[key] as a nested tree, creating it if the key is
// absent or holds a non-map value.
func ensureMap(tree configtree.Tree, key string) configtree.Tree {
	if child, ok := tree[key].(configtree.Tree); ok {
		return child
	}
	child := configtree.Tree{}
	tree[key] = child
	return child
}

func stringField(tree configtree.Tree, key string) string {
	s, _ := tree[key].(string)
	return s
}

// lookupPath walks a dotted-path's keys through nested maps.
func lookupPath(tree configtree.Tree, path []string) (any, bool) {
	var v any = tree
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return v, true
}

func deleteNested(tree configtree.Tree, path []string) {
	for _, key := range path[:len(path)-1] {
		child, ok := tree[key].(map[string]any)
		if !ok {
			return
		}
		tree = child
	}
	delete(tree, path[len(path)-1])
}

// restoreNested makes dst's value at path equal src's: copied over when
// src has it, removed when it does not. Intermediate maps in dst are
// created as needed.
func restoreNested(dst, src configtree.Tree, path ...string) {
	v, ok := lookupPath(src, path)
	if !ok {
		deleteNested(dst, path)
		return
	}
	parent := dst
	for _, key := range path[:len(path)-1] {
		parent = ensureMap(parent, key)
	}
	parent[path[len(path)-1]] = configtree.Clone(v)
}
