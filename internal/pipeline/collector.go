package pipeline

import (
	"fmt"
	"io"
	"log"
	"sync"

	"refindex/internal/extractor"
)

// collector is the single aggregation point for worker results.
type collector struct {
	mu      sync.Mutex
	entries []extractor.Entry

	scanned         int
	failed          int
	traversalErrors int

	out     io.Writer
	logger  *log.Logger
	verbose bool
}

func (c *collector) add(path string, entries []extractor.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanned++
	c.entries = append(c.entries, entries...)
	if c.verbose {
		fmt.Fprintf(c.out, "  Found %d items in %s\n", len(entries), path)
	}
}

func (c *collector) fail(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanned++
	c.failed++
	c.logger.Printf("⚠️ Error processing file %s: %v", path, err)
}

func (c *collector) traversalError(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traversalErrors++
	c.logger.Printf("⚠️ Skipping %s: %v", path, err)
}

func (c *collector) processing(path string) {
	if !c.verbose {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "Processing file: %s\n", path)
}
