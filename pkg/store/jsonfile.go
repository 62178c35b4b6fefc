package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kadirpekel/argus/pkg/memory"
)

const (
	episodesFile = "episodes.jsonl"
	skillsFile   = "skills.json"

	// episodeLineMax bounds a single JSONL line when scanning the log.
	episodeLineMax = 1 << 20
)

// JSONFileStore persists episodes as an append-only JSON-lines log and
// skills as one keyed JSON document. The skill file is replaced through a
// temp-file rename so readers never see a torn write.
type JSONFileStore struct {
	mu  sync.Mutex
	dir string
}

// NewJSONFileStore creates the store directory when missing.
func NewJSONFileStore(dir string) (*JSONFileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &JSONFileStore{dir: dir}, nil
}

// AppendEpisode writes one episode as a JSON line.
func (s *JSONFileStore) AppendEpisode(ctx context.Context, ep memory.Episode) error {
	data, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("failed to encode episode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(episodesFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open episode log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append episode: %w", err)
	}
	return nil
}

// ListEpisodes reads the log oldest first. A positive limit keeps only the
// most recent entries. Undecodable lines are skipped with a warning so one
// corrupt record cannot wedge startup.
func (s *JSONFileStore) ListEpisodes(ctx context.Context, limit int) ([]memory.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(episodesFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open episode log: %w", err)
	}
	defer f.Close()

	var episodes []memory.Episode
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), episodeLineMax)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ep memory.Episode
		if err := json.Unmarshal(line, &ep); err != nil {
			slog.Warn("Skipping undecodable episode line", "file", episodesFile, "error", err)
			continue
		}
		episodes = append(episodes, ep)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read episode log: %w", err)
	}

	if limit > 0 && len(episodes) > limit {
		episodes = episodes[len(episodes)-limit:]
	}
	return episodes, nil
}

// PutSkill stores a skill under its name, replacing any previous entry.
func (s *JSONFileStore) PutSkill(ctx context.Context, skill memory.Skill) error {
	if skill.Name == "" {
		return fmt.Errorf("skill name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	skills, err := s.readSkills()
	if err != nil {
		return err
	}
	skills[skill.Name] = skill
	return s.writeSkills(skills)
}

// ListSkills returns all skills sorted by name.
func (s *JSONFileStore) ListSkills(ctx context.Context) ([]memory.Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	skills, err := s.readSkills()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]memory.Skill, 0, len(names))
	for _, name := range names {
		out = append(out, skills[name])
	}
	return out, nil
}

// Close is a no-op; files are opened per operation.
func (s *JSONFileStore) Close() error { return nil }

func (s *JSONFileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *JSONFileStore) readSkills() (map[string]memory.Skill, error) {
	data, err := os.ReadFile(s.path(skillsFile))
	if os.IsNotExist(err) {
		return map[string]memory.Skill{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read skill file: %w", err)
	}

	skills := map[string]memory.Skill{}
	if err := json.Unmarshal(data, &skills); err != nil {
		return nil, fmt.Errorf("failed to decode skill file: %w", err)
	}
	return skills, nil
}

func (s *JSONFileStore) writeSkills(skills map[string]memory.Skill) error {
	data, err := json.MarshalIndent(skills, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode skills: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "skills-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp skill file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write skills: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp skill file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(skillsFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace skill file: %w", err)
	}
	return nil
}
