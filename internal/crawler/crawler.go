package crawler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrSymlinkLoop is reported when a followed symlink points back into a
// directory that is already being walked.
var ErrSymlinkLoop = errors.New("symlink loop detected")

// Options controls which paths the crawler yields.
type Options struct {
	Extensions     []string // e.g. ".rs"
	Exclude        []string // path segment names that are never entered or yielded
	FollowSymlinks bool
}

// Crawler scans a directory tree for candidate source files.
type Crawler struct {
	extensions     map[string]struct{}
	ignored        map[string]struct{}
	followSymlinks bool
}

// NewCrawler creates a new crawler instance.
func NewCrawler(opts Options) *Crawler {
	c := &Crawler{
		extensions:     make(map[string]struct{}, len(opts.Extensions)),
		ignored:        make(map[string]struct{}, len(opts.Exclude)),
		followSymlinks: opts.FollowSymlinks,
	}
	for _, ext := range opts.Extensions {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.extensions[ext] = struct{}{}
	}
	for _, name := range opts.Exclude {
		c.ignored[name] = struct{}{}
	}
	return c
}

// visitor receives walk events. dir may be nil.
type visitor struct {
	file func(path string)
	dir  func(path string)
	err  func(path string, err error)
}

// ScanProject walks root and streams every candidate file path to onFile.
// Per-entry traversal problems (permissions, broken symlinks, loops) are
// passed to onError and the walk continues. Only an unusable root is
// returned as an error.
func (c *Crawler) ScanProject(root string, onFile func(path string), onError func(path string, err error)) error {
	return c.walkRoot(root, visitor{file: onFile, err: onError})
}

// WalkDirs calls onDir for root and every directory the crawler would enter.
func (c *Crawler) WalkDirs(root string, onDir func(path string), onError func(path string, err error)) error {
	return c.walkRoot(root, visitor{file: func(string) {}, dir: onDir, err: onError})
}

// Matches reports whether a file name passes the extension filter.
func (c *Crawler) Matches(name string) bool {
	_, ok := c.extensions[filepath.Ext(name)]
	return ok
}

// Excluded reports whether any segment of path is an excluded name.
func (c *Crawler) Excluded(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if _, ok := c.ignored[seg]; ok {
			return true
		}
	}
	return false
}

func (c *Crawler) walkRoot(root string, v visitor) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to open scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan root %s is not a directory", root)
	}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("failed to resolve scan root %s: %w", root, err)
	}

	c.descend(root, resolved, v, map[string]struct{}{})
	return nil
}

// walk visits dir in lexical order. resolved is dir with symlinks evaluated;
// active holds the resolved paths of the directories on the current descent
// so symlink cycles can be cut.
func (c *Crawler) walk(dir, resolved string, v visitor, active map[string]struct{}) {
	if v.dir != nil {
		v.dir(dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		v.err(dir, err)
		return
	}

	for _, d := range entries {
		if _, skip := c.ignored[d.Name()]; skip {
			continue
		}
		path := joinPath(dir, d.Name())

		if d.Type()&fs.ModeSymlink != 0 {
			c.visitSymlink(path, v, active)
			continue
		}

		if d.IsDir() {
			c.descend(path, filepath.Join(resolved, d.Name()), v, active)
			continue
		}

		if d.Type().IsRegular() && c.Matches(d.Name()) {
			v.file(path)
		}
	}
}

func (c *Crawler) visitSymlink(path string, v visitor, active map[string]struct{}) {
	target, err := os.Stat(path)
	if err != nil {
		v.err(path, fmt.Errorf("broken symlink: %w", err))
		return
	}

	if !target.IsDir() {
		if target.Mode().IsRegular() && c.Matches(filepath.Base(path)) {
			v.file(path)
		}
		return
	}

	if !c.followSymlinks {
		return
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		v.err(path, err)
		return
	}
	if _, looping := active[resolved]; looping {
		v.err(path, ErrSymlinkLoop)
		return
	}
	c.descend(path, resolved, v, active)
}

// joinPath appends name to dir without cleaning dir, so a root spelled "."
// yields "./src/main.rs" rather than "src/main.rs".
func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir + name
	}
	return dir + string(filepath.Separator) + name
}

func (c *Crawler) descend(path, resolved string, v visitor, active map[string]struct{}) {
	active[resolved] = struct{}{}
	c.walk(path, resolved, v, active)
	delete(active, resolved)
}
