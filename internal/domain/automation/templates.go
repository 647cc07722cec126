package automation

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
)

// SystemUserID owns seeded templates.
const SystemUserID = "system"

// TemplatePattern selects template files below a templates directory.
const TemplatePattern = "**/*.{yaml,yml,toml}"

//go:embed templates
var builtinTemplates embed.FS

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Template is a workflow definition read from a file.
type Template struct {
	Slug   string
	Source string
	Input  WorkflowInput
}

// ID is the deterministic workflow id of the template.
func (t Template) ID() string {
	return "wf_tpl_" + t.Slug
}

type templateFile struct {
	Slug        string   `yaml:"slug" toml:"slug"`
	Name        string   `yaml:"name" toml:"name"`
	Description string   `yaml:"description" toml:"description"`
	Category    string   `yaml:"category" toml:"category"`
	TargetURL   string   `yaml:"target_url" toml:"target_url"`
	Actions     []Action `yaml:"actions" toml:"actions"`
}

// Slugify lowercases s and joins alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// ParseTemplate decodes one YAML or TOML template. The slug defaults to the
// file name.
func ParseTemplate(name string, data []byte) (*Template, error) {
	var f templateFile
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported template format", name)
	}

	slug := f.Slug
	if slug == "" {
		slug = strings.TrimSuffix(path.Base(name), path.Ext(name))
	}
	slug = Slugify(slug)
	if slug == "" {
		return nil, fmt.Errorf("%s: empty slug", name)
	}

	t := &Template{
		Slug:   slug,
		Source: name,
		Input: WorkflowInput{
			Name:        strings.TrimSpace(f.Name),
			Description: f.Description,
			TargetURL:   f.TargetURL,
			Actions:     f.Actions,
			IsTemplate:  true,
			Category:    f.Category,
		},
	}
	if err := ValidateWorkflowInput(t.Input); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// BuiltinTemplates returns the templates compiled into the binary.
func BuiltinTemplates() ([]Template, error) {
	names, err := doublestar.Glob(builtinTemplates, "templates/"+TemplatePattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]Template, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(builtinTemplates, name)
		if err != nil {
			return nil, err
		}
		t, err := ParseTemplate(name, data)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// LoadTemplateDir reads every template file below dir. Files that fail to
// parse are returned in the joined error; the rest are still loaded.
func LoadTemplateDir(dir string) ([]Template, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(TemplatePattern, filepath.ToSlash(rel)); !ok {
			return nil
		}
		mu.Lock()
		paths = append(paths, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	var (
		out  []Template
		errs []error
	)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t, err := ParseTemplate(p, data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, *t)
	}
	return out, errors.Join(errs...)
}

// SeedTemplates upserts the built-in templates plus those found in dir (when
// set) as system-owned workflows. Counters of existing templates are kept and
// soft-deleted templates stay deleted.
func (m *Manager) SeedTemplates(ctx context.Context, dir string) (int, error) {
	templates, err := BuiltinTemplates()
	if err != nil {
		return 0, fmt.Errorf("failed to load built-in templates: %w", err)
	}
	if dir != "" {
		extra, err := LoadTemplateDir(dir)
		if err != nil {
			m.log.Warn("Some templates could not be loaded", zap.String("dir", dir), zap.Error(err))
		}
		templates = append(templates, extra...)
	}

	seeded := 0
	for _, t := range templates {
		if err := m.upsertTemplate(ctx, t); err != nil {
			return seeded, err
		}
		seeded++
	}
	m.log.Info("Templates seeded", zap.Int("count", seeded))
	return seeded, nil
}

func (m *Manager) upsertTemplate(ctx context.Context, t Template) error {
	now := m.now()
	wf := &Workflow{
		ID:          t.ID(),
		UserID:      SystemUserID,
		Name:        t.Input.Name,
		Description: t.Input.Description,
		TargetURL:   t.Input.TargetURL,
		Actions:     t.Input.Actions,
		IsTemplate:  true,
		Category:    t.Input.Category,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	doc, err := docstore.Encode(wf)
	if err != nil {
		return err
	}

	err = m.workflows.InsertOne(ctx, doc)
	if !errors.Is(err, docstore.ErrDuplicate) {
		if err != nil {
			return fmt.Errorf("failed to seed template %s: %w", t.Slug, err)
		}
		return nil
	}

	_, err = m.workflows.UpdateOne(ctx, docstore.Filter{"id": wf.ID}, docstore.NewMutation().
		Set("name", wf.Name).
		Set("description", wf.Description).
		Set("target_url", wf.TargetURL).
		Set("actions", wf.Actions).
		Set("category", wf.Category).
		Set("updated_at", now))
	if err != nil {
		return fmt.Errorf("failed to refresh template %s: %w", t.Slug, err)
	}
	return nil
}
