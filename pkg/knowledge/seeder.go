package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/memory"
)

const (
	// maxFileSize guards against walking into large binaries.
	maxFileSize = 10 << 20

	// defaultSourceConfidence applies to ad-hoc seeding outside config sources.
	defaultSourceConfidence = 0.8

	// summaryLineMax bounds the pattern derived from a chunk.
	summaryLineMax = 160
)

// SeedResult counts what one seeding pass did.
type SeedResult struct {
	Files   int // files successfully extracted
	Entries int // semantic entries created
	Skipped int // unsupported, oversized, empty, or failed files
}

// Seeder extracts operator documents into semantic memory. Each chunk
// becomes one semantic entry whose pattern is the chunk's summary line;
// when a recaller is attached, the full chunk text is indexed for
// embedding-backed search as well.
type Seeder struct {
	cfg      config.KnowledgeConfig
	manager  *memory.Manager
	recaller memory.Recaller
	registry *ExtractorRegistry
}

// SeederOption configures a Seeder.
type SeederOption func(*Seeder)

// WithRecaller attaches a vector index for the seeded chunks. Indexing is
// synchronous so a batch seeding run can close the provider safely.
func WithRecaller(r memory.Recaller) SeederOption {
	return func(s *Seeder) { s.recaller = r }
}

// NewSeeder creates a seeder feeding the given memory manager. A nil
// config gets defaults.
func NewSeeder(cfg *config.KnowledgeConfig, manager *memory.Manager, opts ...SeederOption) (*Seeder, error) {
	if manager == nil {
		return nil, fmt.Errorf("memory manager is required")
	}

	c := config.KnowledgeConfig{}
	if cfg != nil {
		c = *cfg
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid knowledge config: %w", err)
	}

	s := &Seeder{
		cfg:      c,
		manager:  manager,
		registry: NewExtractorRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SeedAll runs every configured source.
func (s *Seeder) SeedAll(ctx context.Context) (SeedResult, error) {
	var total SeedResult
	for _, src := range s.cfg.Sources {
		res, err := s.seedSource(ctx, src)
		total.Files += res.Files
		total.Entries += res.Entries
		total.Skipped += res.Skipped
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Seed walks one directory and loads every supported document it holds.
func (s *Seeder) Seed(ctx context.Context, dir string) (SeedResult, error) {
	return s.seedSource(ctx, config.KnowledgeSource{
		Path:       dir,
		Confidence: defaultSourceConfidence,
	})
}

func (s *Seeder) seedSource(ctx context.Context, src config.KnowledgeSource) (SeedResult, error) {
	var res SeedResult

	if _, err := os.Stat(src.Path); err != nil {
		return res, fmt.Errorf("knowledge source %s: %w", src.Path, err)
	}

	err := filepath.Walk(src.Path, func(path string, info os.FileInfo, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			slog.Warn("Skipping unreadable path", "path", path, "error", walkErr)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if info.Size() == 0 || info.Size() > maxFileSize {
			res.Skipped++
			return nil
		}
		if !matchesPatterns(src.Patterns, path) {
			return nil
		}

		extractor := s.registry.ForPath(path)
		if extractor == nil {
			res.Skipped++
			return nil
		}

		text, err := extractor.Extract(ctx, path)
		if err != nil {
			slog.Warn("Failed to extract document", "path", path, "error", err)
			res.Skipped++
			return nil
		}

		entries := 0
		for _, chunk := range chunkText(text, s.cfg.ChunkSize) {
			entry := s.manager.AddSemantic(memory.SemanticEntry{
				Pattern:       summaryLine(chunk),
				EvidenceCount: 1,
				Confidence:    src.Confidence,
			})
			entries++

			if s.recaller != nil {
				meta := map[string]interface{}{
					"tier":   memory.TierSemantic,
					"source": path,
				}
				if err := s.recaller.Index(ctx, entry.ID, chunk, meta); err != nil {
					slog.Warn("Failed to index knowledge chunk", "path", path, "error", err)
				}
			}
		}

		if entries > 0 {
			res.Files++
			res.Entries += entries
			slog.Debug("Seeded document", "path", path, "entries", entries)
		}
		return nil
	})

	return res, err
}

// matchesPatterns applies the source's glob patterns to the file name.
// No patterns means every supported file.
func matchesPatterns(patterns []string, path string) bool {
	if len(patterns) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// chunkText splits text into chunks of at most size bytes, breaking on
// paragraph boundaries where possible. Paragraphs that alone exceed the
// size are hard-split on rune boundaries.
func chunkText(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 || len(text) <= size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for len(para) > size {
			flush()
			cut := size
			for cut > 0 && !utf8.RuneStart(para[cut]) {
				cut--
			}
			if cut == 0 {
				cut = size
			}
			chunks = append(chunks, para[:cut])
			para = para[cut:]
		}

		if current.Len() > 0 && current.Len()+2+len(para) > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// summaryLine derives the semantic pattern from a chunk: its first
// non-empty line, with markdown heading and bullet markers stripped.
func summaryLine(chunk string) string {
	for _, line := range strings.Split(chunk, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#-*> "))
		if line == "" {
			continue
		}
		return truncateLine(line, summaryLineMax)
	}
	return truncateLine(strings.TrimSpace(chunk), summaryLineMax)
}

func truncateLine(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
