// Copyright 2026 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists the episodic and skill memory tiers. The jsonfile
// backend keeps an append-only JSONL episode log and a keyed JSON skill
// file; the sql backend archives both in one cross-dialect schema on
// sqlite, postgres, or mysql. Either way the in-memory tiers stay
// authoritative: a failing store write costs a warning, never a step.
package store

import (
	"fmt"

	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/memory"
)

// Store bundles episode and skill persistence behind one backend.
type Store interface {
	memory.EpisodeStore
	memory.SkillStore
	Close() error
}

// New creates the configured store backend. The memory backend returns a
// nil store: the tiers simply stay process-local.
func New(cfg *config.StoreConfig, db *config.DatabaseConfig) (Store, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Backend {
	case "", config.StoreBackendMemory:
		return nil, nil
	case config.StoreBackendJSONFile:
		return NewJSONFileStore(cfg.Path)
	case config.StoreBackendSQL:
		if db == nil {
			return nil, fmt.Errorf("sql store requires a database from the databases section")
		}
		return NewSQLStoreFromConfig(db)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
