package proxy

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Source supplies the raw proxy list
type Source interface {
	Lines() ([]string, error)
}

// FileSource reads one proxy per line from a file
type FileSource struct {
	Path string
}

func (s FileSource) Lines() ([]string, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}
	return lines, nil
}

// StaticSource is an in-memory proxy list
type StaticSource []string

func (s StaticSource) Lines() ([]string, error) {
	return []string(s), nil
}

// Pool loads and samples proxies. It keeps no state between loads: every
// Load re-reads the source.
type Pool struct {
	source Source
	logger *logrus.Logger
	intN   func(n int) int
}

// NewPool creates a pool over source. A nil source means no proxies.
func NewPool(source Source, logger *logrus.Logger) *Pool {
	return &Pool{
		source: source,
		logger: logger,
		intN:   rand.IntN,
	}
}

// Load reads the source and returns every well-formed proxy. A source that
// cannot be read yields an empty pool.
func (p *Pool) Load() []Descriptor {
	if p.source == nil {
		return nil
	}

	lines, err := p.source.Lines()
	if err != nil {
		p.logger.Warnf("Failed to load proxies, continuing without: %v", err)
		return nil
	}

	pool := make([]Descriptor, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, err := Parse(line)
		if err != nil {
			p.logger.Debugf("Skipping malformed proxy line: %v", err)
			continue
		}
		pool = append(pool, d)
	}
	return pool
}

// PickRandom returns a uniformly chosen proxy, or nil for an empty pool
// which means "go direct".
func (p *Pool) PickRandom(pool []Descriptor) *Descriptor {
	if len(pool) == 0 {
		return nil
	}
	d := pool[p.intN(len(pool))]
	return &d
}
