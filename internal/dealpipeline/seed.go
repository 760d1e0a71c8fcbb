package dealpipeline

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"time"
)

// defaultSeedCodes are the hard-coded fallback used when no config file,
// seed file, or env override resolves any codes.
var defaultSeedCodes = []string{
	"B07W6JN8V8", "B08FC6D9WP", "B07ZDVQRH7",
}

// SeedSource resolves the set of product codes the deal pipeline scans,
// following the priority chain: (1) an explicit targets-config file, (2) a
// flat newline-separated seed file, (3) an inline comma-separated override,
// (4) hard-coded defaults.
//
// The seed file is hot-reloaded: its mtime is checked once per iteration; if
// unchanged since the last read, the cached parse is reused.
type SeedSource struct {
	targetsConfigFile string
	seedFile          string
	inlineCodes       string

	mu         sync.Mutex
	cachedMod  time.Time
	cachedPath string
	cached     []string
}

// NewSeedSource builds a SeedSource from config values.
func NewSeedSource(targetsConfigFile, seedFile, inlineCodes string) *SeedSource {
	return &SeedSource{
		targetsConfigFile: targetsConfigFile,
		seedFile:          seedFile,
		inlineCodes:       inlineCodes,
	}
}

// Resolve returns the current seed set, reparsing a file source only if its
// mtime has advanced since the last call.
func (s *SeedSource) Resolve() ([]string, error) {
	if s.targetsConfigFile != "" {
		return s.readFileCached(s.targetsConfigFile)
	}
	if s.seedFile != "" {
		codes, err := s.readFileCached(s.seedFile)
		if err == nil && len(codes) > 0 {
			return codes, nil
		}
		// Fall through to inline/default on a missing or empty seed file,
		// rather than failing the iteration outright.
	}
	if s.inlineCodes != "" {
		return splitInline(s.inlineCodes), nil
	}
	return defaultSeedCodes, nil
}

func (s *SeedSource) readFileCached(path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if path == s.cachedPath && !info.ModTime().After(s.cachedMod) {
		return s.cached, nil
	}

	codes, err := readSeedFile(path)
	if err != nil {
		return nil, err
	}
	s.cachedPath = path
	s.cachedMod = info.ModTime()
	s.cached = codes
	return codes, nil
}

func readSeedFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var codes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	return codes, scanner.Err()
}

func splitInline(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
