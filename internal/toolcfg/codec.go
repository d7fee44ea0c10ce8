package toolcfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/confdrift/confdrift/internal/cferrors"
	"github.com/confdrift/confdrift/internal/configtree"
	"github.com/confdrift/confdrift/internal/tools"
)

// readFile parses one config file into a normalized tree. A missing file
// reads as an empty tree so first-time configuration succeeds.
func readFile(path string, format tools.Format) (configtree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return configtree.Tree{}, nil
		}
		return nil, cferrors.IOf("read %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return configtree.Tree{}, nil
	}

	switch format {
	case tools.FormatJSON:
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, cferrors.Parsef("parse %s: %v", path, err)
		}
		return configtree.NormalizeTree(raw), nil

	case tools.FormatTOML:
		var raw map[string]any
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, cferrors.Parsef("parse %s: %v", path, err)
		}
		return configtree.NormalizeTree(raw), nil

	case tools.FormatEnv:
		env, err := godotenv.Unmarshal(string(data))
		if err != nil {
			return nil, cferrors.Parsef("parse %s: %v", path, err)
		}
		return configtree.Normalize(env).(configtree.Tree), nil
	}

	return nil, cferrors.Parsef("unsupported format %q for %s", format, path)
}

// writeFile serializes a tree and writes it with 0600 permissions via a
// temp file and rename. The managed tools hold credentials in these
// files, hence the tight mode.
func writeFile(path string, format tools.Format, tree configtree.Tree) error {
	data, err := encodeTree(format, tree)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return cferrors.IOf("create dir for %s", path)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return cferrors.IOf("write %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return cferrors.IOf("rename %s", path)
	}
	return nil
}

func encodeTree(format tools.Format, tree configtree.Tree) ([]byte, error) {
	switch format {
	case tools.FormatJSON:
		data, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil

	case tools.FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(tree); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case tools.FormatEnv:
		// Plain KEY=VALUE lines, sorted for stable output. godotenv.Write
		// quotes every value, which the managed tools do not expect, so
		// serialization stays by hand; reads go through godotenv.
		keys := make([]string, 0, len(tree))
		for k := range tree {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%s\n", k, envString(tree[k]))
		}
		return []byte(b.String()), nil
	}

	return nil, fmt.Errorf("unsupported format %q", format)
}

func envString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
