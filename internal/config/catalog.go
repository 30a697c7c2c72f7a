package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// ErrInvalidCatalog is wrapped by every team catalog loading error.
var ErrInvalidCatalog = errors.New("invalid team catalog")

var catalogValidator = newCatalogValidator()

// ProviderTokens are the process-wide credentials used for projects that do
// not carry their own token.
type ProviderTokens struct {
	GitLab string
	GitHub string
}

func (p ProviderTokens) forProvider(provider model.Provider) string {
	switch provider {
	case model.ProviderGitLab:
		return p.GitLab
	case model.ProviderGitHub:
		return p.GitHub
	default:
		return ""
	}
}

type catalogDocument struct {
	Identities map[string]string       `yaml:"identities" validate:"dive,keys,required,endkeys,required"`
	Filters    filtersDocument         `yaml:"filters"`
	Urgency    urgencyDocument         `yaml:"urgency"`
	Teams      map[string]teamDocument `yaml:"teams" validate:"required,min=1,dive,keys,required,endkeys"`
}

type filtersDocument struct {
	ExcludeBots             *bool    `yaml:"exclude_bots"`
	ExcludeDependencies     *bool    `yaml:"exclude_dependencies"`
	ExcludeDrafts           *bool    `yaml:"exclude_drafts"`
	ExcludeApproved         *bool    `yaml:"exclude_approved"`
	ExtraBotKeywords        []string `yaml:"extra_bot_keywords" validate:"dive,required"`
	ExtraDependencyKeywords []string `yaml:"extra_dependency_keywords" validate:"dive,required"`
}

type urgencyDocument struct {
	CriticalMultiplier *int `yaml:"critical_multiplier" validate:"omitempty,min=1"`
	WarningDaysOver    *int `yaml:"warning_days_over" validate:"omitempty,min=1"`
}

type teamDocument struct {
	WebhookURL string             `yaml:"webhook_url" validate:"required,url"`
	Thresholds thresholdsDocument `yaml:"thresholds"`
	Projects   []projectDocument  `yaml:"projects" validate:"required,min=1,dive"`
}

type thresholdsDocument struct {
	StaleDays   *int           `yaml:"stale_days" validate:"required,min=0"`
	UsePriority bool           `yaml:"use_priority"`
	Priorities  map[string]int `yaml:"priorities" validate:"dive,keys,priority,endkeys,min=0"`
}

type projectDocument struct {
	Name     string `yaml:"name" validate:"required"`
	Provider string `yaml:"provider" validate:"required,oneof=gitlab github"`
	ID       string `yaml:"id" validate:"required"`
	Token    string `yaml:"token"`
}

// LoadCatalog reads and validates the team catalog at path.
func LoadCatalog(path string, tokens ProviderTokens) (*model.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidCatalog, path, err)
	}
	return ParseCatalog(data, tokens)
}

// ParseCatalog decodes and validates a YAML team catalog. Unknown fields,
// unknown priority levels, negative thresholds and projects without a
// credential are all rejected. Teams are returned sorted by name.
func ParseCatalog(data []byte, tokens ProviderTokens) (*model.Catalog, error) {
	var doc catalogDocument

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parse: %w", ErrInvalidCatalog, err)
	}

	if err := catalogValidator.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, describeValidation(err))
	}

	catalog := &model.Catalog{
		Identities: doc.Identities,
		Filters:    doc.Filters.toRules(),
		Tiers:      doc.Urgency.toPolicy(),
	}
	if catalog.Identities == nil {
		catalog.Identities = map[string]string{}
	}

	names := make([]string, 0, len(doc.Teams))
	for name := range doc.Teams {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		team, err := doc.Teams[name].toTeam(name, tokens)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
		}
		catalog.Teams = append(catalog.Teams, team)
	}

	return catalog, nil
}

func (d teamDocument) toTeam(name string, tokens ProviderTokens) (model.Team, error) {
	team := model.Team{
		Name:       name,
		WebhookURL: d.WebhookURL,
		Thresholds: model.ThresholdConfig{
			StaleDays:   *d.Thresholds.StaleDays,
			UsePriority: d.Thresholds.UsePriority,
			ByPriority:  make(map[model.Priority]int, len(d.Thresholds.Priorities)),
		},
	}

	levels := make([]string, 0, len(d.Thresholds.Priorities))
	for level := range d.Thresholds.Priorities {
		levels = append(levels, level)
	}
	sort.Strings(levels)

	seenLevels := make(map[model.Priority]string, len(levels))
	for _, level := range levels {
		p := model.ParsePriority(level)
		if prev, ok := seenLevels[p]; ok {
			return model.Team{}, fmt.Errorf("team %q: priorities %q and %q name the same level", name, prev, level)
		}
		seenLevels[p] = level
		team.Thresholds.ByPriority[p] = d.Thresholds.Priorities[level]
	}

	seenProjects := make(map[string]int, len(d.Projects))
	for i, p := range d.Projects {
		if first, ok := seenProjects[p.Name]; ok {
			return model.Team{}, fmt.Errorf("team %q project %d: name %q already used by project %d", name, i, p.Name, first)
		}
		seenProjects[p.Name] = i

		provider := model.Provider(p.Provider)
		if provider == model.ProviderGitHub && !isOwnerRepo(p.ID) {
			return model.Team{}, fmt.Errorf("team %q project %d (%s): github id %q must be owner/repo", name, i, p.Name, p.ID)
		}

		credential := p.Token
		if credential == "" {
			credential = tokens.forProvider(provider)
		}
		if credential == "" {
			return model.Team{}, fmt.Errorf("team %q project %d (%s): no token and no %s fallback token",
				name, i, p.Name, strings.ToUpper(p.Provider))
		}

		team.Projects = append(team.Projects, model.Project{
			Name:       p.Name,
			Provider:   provider,
			ID:         p.ID,
			Credential: credential,
		})
	}

	return team, nil
}

func isOwnerRepo(id string) bool {
	owner, repo, ok := strings.Cut(id, "/")
	return ok && owner != "" && repo != "" && !strings.Contains(repo, "/")
}

func (d filtersDocument) toRules() model.FilterRules {
	rules := model.DefaultFilterRules()
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&rules.ExcludeBots, d.ExcludeBots)
	set(&rules.ExcludeDependencies, d.ExcludeDependencies)
	set(&rules.ExcludeDrafts, d.ExcludeDrafts)
	set(&rules.ExcludeApproved, d.ExcludeApproved)

	rules.BotKeywords = append(rules.BotKeywords, d.ExtraBotKeywords...)
	rules.DependencyKeywords = append(rules.DependencyKeywords, d.ExtraDependencyKeywords...)
	return rules
}

func (d urgencyDocument) toPolicy() model.TierPolicy {
	policy := model.DefaultTierPolicy()
	if d.CriticalMultiplier != nil {
		policy.CriticalMultiplier = *d.CriticalMultiplier
	}
	if d.WarningDaysOver != nil {
		policy.WarningDaysOver = *d.WarningDaysOver
	}
	return policy
}

// describeValidation turns validator errors into one readable line using the
// YAML field names.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}

		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "priority":
			msgs = append(msgs, fmt.Sprintf("%s: unknown priority level %q", field, fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a URL, got %q", field, fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// newCatalogValidator configures the validator with YAML field names and the
// custom priority-level check.
func newCatalogValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return model.ParsePriority(fl.Field().String()).Known()
	}); err != nil {
		panic("failed to register priority validation: " + err.Error())
	}

	return v
}
