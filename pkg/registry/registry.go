// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/template"
)

func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &reg, nil
}

func SaveRegistry(reg *TemplateRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate rejects duplicate ids, empty title or message and unknown type/priority values.
func (r *TemplateRegistry) Validate() error {
	if len(r.Templates) == 0 {
		return fmt.Errorf("registry contains no templates")
	}

	ids := make(map[string]bool, len(r.Templates))
	for i, t := range r.Templates {
		if t.ID == "" {
			return fmt.Errorf("template #%d: missing id", i)
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate template id: %s", t.ID)
		}
		ids[t.ID] = true

		if t.Title == "" || t.Message == "" {
			return fmt.Errorf("template %s: title and message are required", t.ID)
		}
		if t.Type != "" && !t.Type.Valid() {
			return fmt.Errorf("template %s: unknown type %q", t.ID, t.Type)
		}
		if t.Priority != "" && !t.Priority.Valid() {
			return fmt.Errorf("template %s: unknown priority %q", t.ID, t.Priority)
		}
	}
	return nil
}

// Variables lists the distinct placeholders a template expects, sorted.
func Variables(t models.NotificationTemplate) []string {
	seen := map[string]bool{}
	for _, s := range []string{t.Title, t.Message, t.ActionURL} {
		for _, name := range template.Placeholders(s) {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
