package git

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ChangedFiles returns the files under root that differ from baseRef,
// plus untracked files that are not ignored. Paths are joined onto root so
// they are spelled the same way the crawler spells them.
func ChangedFiles(root, baseRef string) ([]string, error) {
	diff, err := run(root, "diff", "--name-only", "--relative", baseRef, "--")
	if err != nil {
		return nil, err
	}
	untracked, err := run(root, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var paths []string
	for _, rel := range append(parseNameList(diff), parseNameList(untracked)...) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths, nil
}

func run(root string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// parseNameList splits `git diff --name-only` style output into paths.
func parseNameList(output []byte) []string {
	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// git C-quotes paths with unusual bytes unless core.quotePath=false,
		// e.g. "src/caf\303\251.rs"
		if strings.HasPrefix(line, `"`) {
			if unquoted, err := strconv.Unquote(line); err == nil {
				line = unquoted
			}
		}
		paths = append(paths, line)
	}
	return paths
}
