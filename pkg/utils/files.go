package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SourceExt is the extension of compilable source files.
const SourceExt = ".jack"

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// FindSources returns the source files named by path. A file path must
// carry the source extension; a directory yields its direct source
// children in lexical order.
func FindSources(path string) ([]string, error) {
	return FindFiles(path, SourceExt)
}

// FindFiles is FindSources for an arbitrary extension.
func FindFiles(path, ext string) ([]string, error) {
	fullPath, _, err := GetPathInfo(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if filepath.Ext(fullPath) != ext {
			return nil, fmt.Errorf("%s: not a %s file", path, ext)
		}
		return []string{fullPath}, nil
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		files = append(files, filepath.Join(fullPath, e.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: no %s files found", path, ext)
	}
	return files, nil
}

// OutputPath swaps the extension of src for suffix, e.g. ".vm" or "T.xml".
func OutputPath(src, suffix string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + suffix
}
