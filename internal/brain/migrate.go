package brain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNewerSchema is returned when brain.json was written by a newer
// release. Callers must not overwrite such a document.
var ErrNewerSchema = errors.New("brain document schema is newer than this release supports")

// migration upgrades a raw document from version v to v+1 in place.
type migration func(doc map[string]any) error

// migrations is keyed by the version a step upgrades FROM.
var migrations = map[int]migration{
	1: migrateV1toV2,
}

// versionOf reads the schema version of a raw document. Missing or
// non-numeric versions count as 1.
func versionOf(doc map[string]any) int {
	if v, ok := doc["version"].(float64); ok && v >= 1 {
		return int(v)
	}
	return 1
}

// migrate applies the chain until the document reaches CurrentVersion.
func migrate(doc map[string]any) (map[string]any, error) {
	v := versionOf(doc)
	if v > CurrentVersion {
		return nil, fmt.Errorf("%w: version %d, supported %d", ErrNewerSchema, v, CurrentVersion)
	}
	for v < CurrentVersion {
		step, ok := migrations[v]
		if !ok {
			return nil, fmt.Errorf("no migration from version %d", v)
		}
		if err := step(doc); err != nil {
			return nil, fmt.Errorf("migrating v%d to v%d: %w", v, v+1, err)
		}
		v++
		doc["version"] = v
	}
	return doc, nil
}

// migrateV1toV2 adds notes and sessions, backfills lock.active and
// deploy.url, and drops the per-lock importance field.
func migrateV1toV2(doc map[string]any) error {
	if _, ok := doc["notes"].([]any); !ok {
		doc["notes"] = []any{}
	}

	sessions, ok := doc["sessions"].(map[string]any)
	if !ok {
		sessions = map[string]any{}
		doc["sessions"] = sessions
	}
	if _, ok := sessions["current"]; !ok {
		sessions["current"] = nil
	}
	if _, ok := sessions["history"].([]any); !ok {
		sessions["history"] = []any{}
	}

	if specLock, ok := doc["specLock"].(map[string]any); ok {
		items, _ := specLock["items"].([]any)
		for _, item := range items {
			lock, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := lock["active"]; !ok {
				lock["active"] = true
			}
			delete(lock, "importance")
		}
	}

	facts, ok := doc["facts"].(map[string]any)
	if !ok {
		facts = map[string]any{}
		doc["facts"] = facts
	}
	deploy, ok := facts["deploy"].(map[string]any)
	if !ok {
		deploy = map[string]any{"provider": "unknown"}
		facts["deploy"] = deploy
	}
	if _, ok := deploy["url"]; !ok {
		deploy["url"] = ""
	}
	return nil
}

// remarshal decodes a raw map into a typed value.
func remarshal(in map[string]any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
