package sections

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/adrg/frontmatter"
)

// LoadDefaults reads one markdown file per section from dir. Frontmatter
// fields become defaults and a non-empty body is stored under "body". The
// section id comes from the "section" frontmatter field or the file name.
func LoadDefaults(fsys fs.FS, dir string) (map[string]map[string]any, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("sections: read defaults dir %q: %w", dir, err)
	}

	out := make(map[string]map[string]any)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".md" {
			continue
		}
		name := path.Join(dir, entry.Name())
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("sections: read %q: %w", name, err)
		}

		meta := map[string]any{}
		body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
		if err != nil {
			return nil, fmt.Errorf("sections: parse %q: %w", name, err)
		}

		sectionID := strings.TrimSuffix(entry.Name(), ".md")
		if id, ok := meta["section"].(string); ok && strings.TrimSpace(id) != "" {
			sectionID = strings.TrimSpace(id)
		}
		delete(meta, "section")

		if text := strings.TrimSpace(string(body)); text != "" {
			meta["body"] = text
		}
		out[sectionID] = meta
	}
	return out, nil
}

// SeedDefaults loads defaults from fsys and registers them on the store.
func (s *Store) SeedDefaults(fsys fs.FS, dir string) error {
	defaults, err := LoadDefaults(fsys, dir)
	if err != nil {
		return err
	}
	for id, values := range defaults {
		s.RegisterDefaults(id, values)
	}
	s.logger.Info("sections.defaults.seeded", "count", len(defaults), "dir", dir)
	return nil
}
