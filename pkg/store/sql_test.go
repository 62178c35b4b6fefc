package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/memory"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)

	s, err := NewSQLStore(db, "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLStore_Validation(t *testing.T) {
	_, err := NewSQLStore(nil, "sqlite")
	assert.Error(t, err)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dialect")
}

func TestSQLStore_AppendAndListEpisodes(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"ep1", "ep2", "ep3"} {
		ep := testEpisode(id, "run "+id, true)
		ep.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.AppendEpisode(ctx, ep))
	}

	episodes, err := s.ListEpisodes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, episodes, 3)
	assert.Equal(t, "ep1", episodes[0].ID, "oldest first")
	assert.Equal(t, "ep3", episodes[2].ID)

	recent, err := s.ListEpisodes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "ep2", recent[0].ID, "limit keeps the newest rows, oldest first")
	assert.Equal(t, "ep3", recent[1].ID)
}

func TestSQLStore_EpisodePayloadRoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	ep := memory.Episode{
		ID:         "ep1",
		TaskPrompt: "book a flight",
		Outcome:    "booked",
		Success:    true,
		Duration:   90 * time.Second,
		ToolsUsed:  []string{"navigate", "click", "type"},
		StepCount:  12,
		Tags:       []string{"travel"},
		Importance: 0.8,
		Timestamp:  time.Now().UTC(),
	}
	require.NoError(t, s.AppendEpisode(ctx, ep))

	episodes, err := s.ListEpisodes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, episodes, 1)

	got := episodes[0]
	assert.Equal(t, ep.TaskPrompt, got.TaskPrompt)
	assert.Equal(t, ep.ToolsUsed, got.ToolsUsed)
	assert.Equal(t, ep.Tags, got.Tags)
	assert.Equal(t, ep.Importance, got.Importance)
	assert.Equal(t, ep.Duration, got.Duration)
	assert.WithinDuration(t, ep.Timestamp, got.Timestamp, time.Second)
}

func TestSQLStore_SkillUpsert(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSkill(ctx, memory.Skill{Name: "login", Description: "old", SuccessRate: 0.5}))
	require.NoError(t, s.PutSkill(ctx, memory.Skill{Name: "checkout", Description: "pay"}))
	require.NoError(t, s.PutSkill(ctx, memory.Skill{Name: "login", Description: "new", SuccessRate: 0.9}))

	skills, err := s.ListSkills(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "checkout", skills[0].Name, "sorted by name")
	assert.Equal(t, "login", skills[1].Name)
	assert.Equal(t, "new", skills[1].Description)
	assert.Equal(t, 0.9, skills[1].SuccessRate)
}

func TestSQLStore_PutSkillRequiresName(t *testing.T) {
	s := newSQLiteStore(t)

	assert.Error(t, s.PutSkill(context.Background(), memory.Skill{}))
}

func TestSQLStore_EmptyTables(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	episodes, err := s.ListEpisodes(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, episodes)

	skills, err := s.ListSkills(ctx)
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestNewSQLStoreFromConfig_Sqlite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "argus.db"),
	}

	s, err := NewSQLStoreFromConfig(cfg)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AppendEpisode(context.Background(), testEpisode("ep1", "run", true)))
	episodes, err := s.ListEpisodes(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, episodes, 1)
}

func TestNewSQLStoreFromConfig_Invalid(t *testing.T) {
	_, err := NewSQLStoreFromConfig(nil)
	assert.Error(t, err)

	_, err = NewSQLStoreFromConfig(&config.DatabaseConfig{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid database config")
}
