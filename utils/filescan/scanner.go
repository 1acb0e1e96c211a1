// Package filescan walks a directory and estimates how many tokens its
// files would cost if inlined into an AI prompt, so an AI step's
// `context:` entries can point at a directory instead of requiring the
// recipe author to paste file contents by hand (see engine/tool/ai.go).
package filescan

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Token budget thresholds for a single context entry in an assembled
// AI prompt.
const (
	TokenBudgetSafe  = 10000 // under this, inline the file's full contents
	TokenBudgetLarge = 25000 // under this, inline but flag it as costly
	TokenBudgetMax   = 25000 // at or above this, summarize instead of inlining
	BytesPerToken    = 4     // rough estimate for text files
)

// FileInfo holds one scanned file's size and estimated prompt cost.
type FileInfo struct {
	Path            string
	RelPath         string // relative to the scan root
	Size            int64
	EstimatedTokens int
	IsDir           bool
}

// TokenCategory returns the prompt-budget category for a file.
func (f *FileInfo) TokenCategory() string {
	if f.EstimatedTokens < TokenBudgetSafe {
		return "safe"
	} else if f.EstimatedTokens < TokenBudgetLarge {
		return "large"
	}
	return "oversized"
}

// ScanResult holds the results of a directory scan.
type ScanResult struct {
	Root           string
	Files          []FileInfo
	TotalFiles     int
	TotalTokens    int
	SafeCount      int
	LargeCount     int
	OversizedCount int
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// IgnoreDirs is a set of directory names to skip.
	IgnoreDirs map[string]bool

	// IgnoreHidden skips files and dirs starting with ".".
	IgnoreHidden bool

	// IgnoreBinary skips common binary file extensions.
	IgnoreBinary bool

	// UseGitignore loads and applies Root's .gitignore, if present.
	UseGitignore bool

	// MaxDepth limits recursion depth (0 = unlimited).
	MaxDepth int
}

// DefaultOptions returns sensible defaults for scanning a project
// directory named by an AI step's `context:` entry.
func DefaultOptions() ScanOptions {
	return ScanOptions{
		IgnoreDirs: map[string]bool{
			"node_modules": true,
			"vendor":       true,
			"__pycache__":  true,
			".git":         true,
			".svn":         true,
			".hg":          true,
			"dist":         true,
			"build":        true,
			"target":       true,
		},
		IgnoreHidden: true,
		IgnoreBinary: true,
		UseGitignore: true,
		MaxDepth:     0,
	}
}

// BinaryExtensions is the set of extensions to skip when IgnoreBinary is true.
var BinaryExtensions = map[string]bool{
	".exe": true, ".bin": true, ".so": true, ".dylib": true, ".dll": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".webp": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".pyc": true, ".pyo": true, ".class": true, ".o": true, ".a": true,
	".sqlite": true, ".db": true,
}

// Scan walks a directory and collects token-budget estimates for
// every file under it, honoring a .gitignore at root when
// opts.UseGitignore is set.
func Scan(root string, opts ScanOptions) (*ScanResult, error) {
	if strings.HasPrefix(root, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		root = filepath.Join(home, root[1:])
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		Root:  absRoot,
		Files: make([]FileInfo, 0, 100),
	}

	var ignore *gitignore.GitIgnore
	if opts.UseGitignore {
		ignore = loadGitignore(absRoot)
	}

	err = scanDir(absRoot, absRoot, 0, opts, ignore, result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ScanPaths scans multiple paths and combines results.
func ScanPaths(paths []string, opts ScanOptions) (*ScanResult, error) {
	combined := &ScanResult{
		Files: make([]FileInfo, 0, 100),
	}

	for _, path := range paths {
		if strings.HasPrefix(path, "~") {
			home, _ := os.UserHomeDir()
			path = filepath.Join(home, path[1:])
		}

		info, err := os.Stat(path)
		if err != nil {
			continue // skip paths that don't exist
		}

		if info.IsDir() {
			if combined.Root == "" {
				combined.Root = path
			}
			result, err := Scan(path, opts)
			if err != nil {
				continue
			}
			combined.Files = append(combined.Files, result.Files...)
			combined.TotalFiles += result.TotalFiles
			combined.TotalTokens += result.TotalTokens
			combined.SafeCount += result.SafeCount
			combined.LargeCount += result.LargeCount
			combined.OversizedCount += result.OversizedCount
		} else {
			addFile(path, path, info, combined)
		}
	}

	return combined, nil
}

// loadGitignore loads .gitignore rules from root, returning nil if
// none exists.
func loadGitignore(root string) *gitignore.GitIgnore {
	gi, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

func shouldIgnoreDir(name string, relPath string, ignoreDirs map[string]bool, ignore *gitignore.GitIgnore) bool {
	if ignoreDirs[name] {
		return true
	}
	if ignore != nil && ignore.MatchesPath(relPath) {
		return true
	}
	return false
}

func scanDir(root, dir string, depth int, opts ScanOptions, ignore *gitignore.GitIgnore, result *ScanResult) error {
	if opts.MaxDepth > 0 && depth > opts.MaxDepth {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil // skip unreadable directories
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)
		relPath, _ := filepath.Rel(root, path)

		if opts.IgnoreHidden && strings.HasPrefix(name, ".") {
			continue
		}

		if entry.IsDir() {
			if shouldIgnoreDir(name, relPath, opts.IgnoreDirs, ignore) {
				continue
			}
			if err := scanDir(root, path, depth+1, opts, ignore, result); err != nil {
				continue // skip on error
			}
		} else {
			if opts.IgnoreBinary {
				ext := strings.ToLower(filepath.Ext(name))
				if BinaryExtensions[ext] {
					continue
				}
			}
			if ignore != nil && ignore.MatchesPath(relPath) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				continue
			}
			addFile(root, path, info, result)
		}
	}

	return nil
}

func addFile(root, path string, info os.FileInfo, result *ScanResult) {
	relPath, _ := filepath.Rel(root, path)
	tokens := int(info.Size() / BytesPerToken)

	file := FileInfo{
		Path:            path,
		RelPath:         relPath,
		Size:            info.Size(),
		EstimatedTokens: tokens,
	}

	result.Files = append(result.Files, file)
	result.TotalFiles++
	result.TotalTokens += tokens

	switch file.TokenCategory() {
	case "safe":
		result.SafeCount++
	case "large":
		result.LargeCount++
	case "oversized":
		result.OversizedCount++
	}
}

// FilterByCategory returns files matching the given category.
func (r *ScanResult) FilterByCategory(category string) []FileInfo {
	var filtered []FileInfo
	for _, f := range r.Files {
		if f.TokenCategory() == category {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// HasLargeFiles reports whether any file exceeds the safe threshold.
func (r *ScanResult) HasLargeFiles() bool {
	return r.LargeCount > 0 || r.OversizedCount > 0
}
