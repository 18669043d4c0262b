package catalog

import (
	"cmp"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ahrav/go-rubric/internal/domain"
)

// schemeFile mirrors the on-disk YAML layout of one scheme.
type schemeFile struct {
	ID                string         `yaml:"id"`
	Name              string         `yaml:"name"`
	Description       string         `yaml:"description"`
	Dimension         string         `yaml:"dimension"`
	Type              string         `yaml:"type"`
	Version           any            `yaml:"version"`
	OutputRange       map[string]any `yaml:"output_range"`
	Labels            map[any]any    `yaml:"labels"`
	SelectionStrategy string         `yaml:"selection_strategy"`
	Anchors           []anchorFile   `yaml:"anchors"`
	Items             []itemFile     `yaml:"items"`
	Aggregator        struct {
		Params struct {
			ScaleFactor float64 `yaml:"scale_factor"`
			Missing     string  `yaml:"missing"`
		} `yaml:"params"`
	} `yaml:"aggregator"`
	GateRules    []gateRuleFile `yaml:"gate_rules"`
	Criteria     any            `yaml:"criteria"`
	Dependencies []string       `yaml:"dependencies"`
	Rules        []ruleFile     `yaml:"rules"`
	Default      *defaultFile   `yaml:"default"`
}

type anchorFile struct {
	Value       int    `yaml:"value"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
}

type itemFile struct {
	ID     string      `yaml:"id"`
	Prompt string      `yaml:"prompt"`
	Weight *float64    `yaml:"weight"`
	Values map[any]any `yaml:"values"`
}

type gateRuleFile struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Reason      string `yaml:"reason"`
	Condition   string `yaml:"condition"`
	Severity    string `yaml:"severity"`
	LegalBasis  string `yaml:"legal_basis"`
	Scope       string `yaml:"scope"`
}

type conditionFile struct {
	Dimension string  `yaml:"dimension"`
	Operator  string  `yaml:"operator"`
	Value     float64 `yaml:"value"`
}

type ruleFile struct {
	Conditions []conditionFile    `yaml:"conditions"`
	Value      any                `yaml:"value"`
	Weights    map[string]float64 `yaml:"weights"`
	Label      string             `yaml:"label"`
	Confidence *float64           `yaml:"confidence"`
	Reasoning  string             `yaml:"reasoning"`
}

type defaultFile struct {
	Value      any      `yaml:"value"`
	Label      string   `yaml:"label"`
	Confidence *float64 `yaml:"confidence"`
	Reasoning  string   `yaml:"reasoning"`
}

// loadOptions configures LoadFS.
type loadOptions struct {
	logger *slog.Logger
	strict bool
}

// LoadOption customizes catalog loading.
type LoadOption func(*loadOptions)

// WithLogger sets the logger used to report skipped files.
func WithLogger(l *slog.Logger) LoadOption {
	return func(o *loadOptions) { o.logger = l }
}

// WithStrict fails the load on the first malformed file instead of skipping it.
func WithStrict() LoadOption {
	return func(o *loadOptions) { o.strict = true }
}

// LoadFS reads every *.yaml and *.yml file at the root of fsys into a catalog.
// Malformed files are logged and skipped unless WithStrict is given.
func LoadFS(fsys fs.FS, opts ...LoadOption) (*Catalog, error) {
	o := loadOptions{logger: slog.Default().With("component", "catalog")}
	for _, opt := range opts {
		opt(&o)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read schemes dir: %w", err)
	}

	var defs []domain.SchemeDefinition
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := path.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		def, err := loadFile(fsys, e.Name())
		if err == nil {
			err = def.Validate()
		}
		if err == nil {
			if prev, dup := seen[def.ID]; dup {
				err = fmt.Errorf("%w: %s also defined in %s", domain.ErrDuplicateScheme, def.ID, prev)
			}
		}
		if err != nil {
			if o.strict {
				return nil, fmt.Errorf("load %s: %w", e.Name(), err)
			}
			o.logger.Error("skipping scheme file", "file", e.Name(), "error", err)
			continue
		}

		seen[def.ID] = e.Name()
		defs = append(defs, def)
		o.logger.Debug("loaded scheme", "scheme_id", def.ID, "kind", def.Kind, "file", e.Name())
	}

	c, err := New(defs...)
	if err != nil {
		return nil, err
	}
	for id, missing := range c.DanglingDependencies() {
		o.logger.Warn("derived scheme references unknown schemes", "scheme_id", id, "missing", missing)
	}
	if c.Len() == 0 {
		o.logger.Warn("scheme catalog is empty")
	}
	o.logger.Info("scheme catalog loaded", "schemes", c.Len())
	return c, nil
}

// LoadDir is LoadFS over a directory on disk.
func LoadDir(dir string, opts ...LoadOption) (*Catalog, error) {
	return LoadFS(os.DirFS(dir), opts...)
}

func loadFile(fsys fs.FS, name string) (domain.SchemeDefinition, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return domain.SchemeDefinition{}, err
	}
	return Parse(data)
}

// Parse decodes one YAML scheme document.
func Parse(data []byte) (domain.SchemeDefinition, error) {
	var f schemeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.SchemeDefinition{}, fmt.Errorf("%w: %w", domain.ErrInvalidScheme, err)
	}
	return f.toDomain()
}

func (f *schemeFile) toDomain() (domain.SchemeDefinition, error) {
	def := domain.SchemeDefinition{
		ID:            f.ID,
		Kind:          domain.ScaleKind(f.Type),
		Name:          f.Name,
		Description:   f.Description,
		Dimension:     f.Dimension,
		Version:       scalarString(f.Version),
		OutputRange:   f.OutputRange,
		Selection:     domain.SelectionStrategy(f.SelectionStrategy),
		ScaleFactor:   f.Aggregator.Params.ScaleFactor,
		MissingPolicy: domain.MissingPolicy(f.Aggregator.Params.Missing),
		Criteria:      scalarString(f.Criteria),
		Dependencies:  f.Dependencies,
	}

	labels, err := parseLabels(f.Labels)
	if err != nil {
		return def, fmt.Errorf("%w: %s: labels: %w", domain.ErrInvalidScheme, f.ID, err)
	}
	def.Labels = labels

	for _, a := range f.Anchors {
		def.Anchors = append(def.Anchors, domain.Anchor{Level: a.Value, Label: a.Label, Description: a.Description})
	}

	for _, it := range f.Items {
		item, err := it.toDomain()
		if err != nil {
			return def, fmt.Errorf("%w: %s: item %s: %w", domain.ErrInvalidScheme, f.ID, it.ID, err)
		}
		def.Items = append(def.Items, item)
	}

	for _, r := range f.GateRules {
		desc := firstNonEmpty(r.Description, r.Reason, r.Condition)
		def.GateRules = append(def.GateRules, domain.GateRule{
			ID:          r.ID,
			Description: desc,
			Severity:    r.Severity,
			LegalBasis:  r.LegalBasis,
			Scope:       domain.Scope(r.Scope),
		})
	}

	for i, r := range f.Rules {
		rv, err := domain.ParseRuleValue(r.Value)
		if err != nil {
			return def, fmt.Errorf("%w: %s: rule %d: %w", domain.ErrInvalidScheme, f.ID, i+1, err)
		}
		rule := domain.DerivedRule{
			Value:      rv,
			Weights:    r.Weights,
			Label:      r.Label,
			Confidence: r.Confidence,
			Reasoning:  r.Reasoning,
		}
		for _, c := range r.Conditions {
			rule.Conditions = append(rule.Conditions, domain.Condition{
				Dimension: c.Dimension,
				Operator:  domain.Operator(c.Operator),
				Threshold: c.Value,
			})
		}
		def.Rules = append(def.Rules, rule)
	}

	if f.Default != nil {
		d := domain.DefaultRule{Label: f.Default.Label, Reasoning: f.Default.Reasoning}
		if f.Default.Value != nil {
			v, err := domain.ValueFromAny(f.Default.Value)
			if err != nil {
				return def, fmt.Errorf("%w: %s: default: %w", domain.ErrInvalidScheme, f.ID, err)
			}
			d.Value = v
		}
		if f.Default.Confidence != nil {
			d.Confidence = *f.Default.Confidence
		}
		def.Default = &d
	}

	return def, nil
}

func (it itemFile) toDomain() (domain.ChecklistItem, error) {
	item := domain.ChecklistItem{ID: it.ID, Prompt: it.Prompt, Weight: 1}
	if it.Weight != nil {
		item.Weight = *it.Weight
	}
	for k, raw := range it.Values {
		if s, ok := k.(string); ok && strings.EqualFold(s, "na") {
			score, err := levelScore(raw)
			if err != nil {
				return item, err
			}
			if score != nil {
				item.Missing = score
			}
			continue
		}
		level, err := intKey(k)
		if err != nil {
			return item, err
		}
		score, err := levelScore(raw)
		if err != nil {
			return item, err
		}
		if score == nil {
			continue
		}
		lv := domain.LevelValue{Level: level, Score: *score}
		if m, ok := raw.(map[string]any); ok {
			lv.Description = scalarString(m["description"])
		}
		item.Levels = append(item.Levels, lv)
	}
	sortLevels(item.Levels)
	return item, nil
}

// levelScore accepts either a bare number or a {score, description} mapping.
// A null entry yields nil.
func levelScore(raw any) (*float64, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return levelScore(v["score"])
	case map[any]any:
		return levelScore(v["score"])
	default:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return &f, nil
	}
}

func parseLabels(m map[any]any) (domain.LabelThresholds, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[float64]string, len(m))
	for k, v := range m {
		f, err := toFloat(k)
		if err != nil {
			return nil, err
		}
		out[f] = scalarString(v)
	}
	return domain.NewLabelThresholds(out), nil
}

func intKey(k any) (int, error) {
	f, err := toFloat(k)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("level %v is not an integer", k)
	}
	return int(f), nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func sortLevels(levels []domain.LevelValue) {
	slices.SortFunc(levels, func(a, b domain.LevelValue) int { return cmp.Compare(a.Level, b.Level) })
}
