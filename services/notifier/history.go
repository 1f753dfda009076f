package notifier

import (
	"encoding/json"
	"os"

	"promoscout/promoworker/internal/domain"
)

// History persists the deal IDs seen by previous runs so alerts cover only
// genuinely new deals. This set belongs to the alert channel alone; the
// pipeline itself is run-scoped.
type History struct {
	path string
}

// NewHistory creates a history store backed by a JSON file.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Load returns the previously-seen ID set. A missing file means a first run
// and yields an empty set, not an error.
func (h *History) Load() (map[string]struct{}, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}

// Save overwrites the history with the IDs of the current run's deals.
func (h *History) Save(deals []domain.ExtractedDeal) error {
	ids := make([]string, 0, len(deals))
	for _, d := range deals {
		ids = append(ids, d.ID())
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return os.WriteFile(h.path, data, 0o644)
}

// FilterNew returns the deals whose IDs are not in the seen set.
func FilterNew(deals []domain.ExtractedDeal, seen map[string]struct{}) []domain.ExtractedDeal {
	var fresh []domain.ExtractedDeal
	for _, d := range deals {
		if _, ok := seen[d.ID()]; !ok {
			fresh = append(fresh, d)
		}
	}
	return fresh
}
