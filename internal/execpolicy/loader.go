package execpolicy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PolicyExtension is the file suffix for rule files in a policy directory.
const PolicyExtension = ".policy"

// LoadDir loads every *.policy file in dir, sorted by file name, and builds
// a single policy from their concatenation. A missing directory yields an
// empty policy; any unreadable or invalid file fails the whole load.
func LoadDir(dir string) (*Policy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("failed to read policy dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), PolicyExtension) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	parser := NewParser()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
		}
		if err := parser.Parse(path, data); err != nil {
			return nil, err
		}
	}
	return parser.Build(), nil
}
