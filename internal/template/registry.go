package template

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
)

// schemaCacheSize bounds the compiled-validator cache. Templates rarely
// declare more than a handful of types; the bound guards against pathological
// registrations, not normal use.
const schemaCacheSize = 128

// Registry holds registered template definitions and tracks the active one.
// It is the single injected source of template state: the parser, resolver,
// and search layers consult a Registry instance rather than ambient globals,
// so multiple templates can coexist in tests.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Definition
	// typeIndex precomputes name→definition per template at registration.
	// GetEntityType is a hot path, called once per document per scan.
	typeIndex map[string]map[string]*EntityType
	active    string
	schemas   *lru.Cache[string, *Schema]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	cache, _ := lru.New[string, *Schema](schemaCacheSize)
	return &Registry{
		templates: make(map[string]*Definition),
		typeIndex: make(map[string]map[string]*EntityType),
		schemas:   cache,
	}
}

// Register validates and stores a template definition. Registration fails
// closed: a structurally bad template is rejected outright rather than
// partially accepted. sourceTag names where the template came from
// (embedded, file path, caller) and appears in logs only.
func (r *Registry) Register(def *Definition, sourceTag string) error {
	if err := validateDefinition(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[def.ID]; exists {
		return cerr.TemplateError(cerr.ErrCodeTemplateDuplicate,
			fmt.Sprintf("template %q is already registered", def.ID))
	}

	index := make(map[string]*EntityType, len(def.EntityTypes))
	for i := range def.EntityTypes {
		et := &def.EntityTypes[i]
		index[et.Name] = et
	}

	r.templates[def.ID] = def
	r.typeIndex[def.ID] = index

	slog.Info("template_registered",
		slog.String("template", def.ID),
		slog.String("version", def.Version),
		slog.String("source", sourceTag),
		slog.Int("entity_types", len(def.EntityTypes)))

	return nil
}

// Activate makes the template with the given id the active one.
func (r *Registry) Activate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[id]; !ok {
		return cerr.TemplateError(cerr.ErrCodeTemplateUnknown,
			fmt.Sprintf("unknown template %q", id))
	}
	r.active = id

	slog.Info("template_activated", slog.String("template", id))
	return nil
}

// Active returns the active template definition, or nil when none is active.
func (r *Registry) Active() *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates[r.active]
}

// ActiveID returns the active template id, or "".
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// IDs returns every registered template id, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns a registered template by id.
func (r *Registry) Get(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.templates[id]
	return def, ok
}

// GetEntityType returns the active template's entity type definition by
// name. O(1) via the per-template index built at registration.
func (r *Registry) GetEntityType(name string) (*EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index, ok := r.typeIndex[r.active]
	if !ok {
		return nil, false
	}
	et, ok := index[name]
	return et, ok
}

// GetSchema returns the compiled validator for an entity type of the active
// template, building and caching it on first use. Repeated calls return the
// same cached schema until a different template is registered and activated.
func (r *Registry) GetSchema(entityType string) (*Schema, error) {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()

	if active == "" {
		return nil, cerr.TemplateError(cerr.ErrCodeTemplateUnknown, "no active template")
	}

	key := active + "/" + entityType
	if schema, ok := r.schemas.Get(key); ok {
		return schema, nil
	}

	et, ok := r.GetEntityType(entityType)
	if !ok {
		return nil, cerr.Newf(cerr.ErrCodeTypeUnresolved,
			"entity type %q is not declared by template %q", entityType, active)
	}

	schema := CompileSchema(et)
	r.schemas.Add(key, schema)
	return schema, nil
}

// validateDefinition applies the registration-time structural checks.
func validateDefinition(def *Definition) error {
	if def == nil {
		return cerr.TemplateError(cerr.ErrCodeTemplateID, "nil template definition")
	}
	if !ValidID(def.ID) {
		return cerr.TemplateError(cerr.ErrCodeTemplateID,
			fmt.Sprintf("malformed template id %q (want lowercase-hyphenated)", def.ID))
	}
	if !ValidVersion(def.Version) {
		return cerr.TemplateError(cerr.ErrCodeTemplateVersion,
			fmt.Sprintf("malformed template version %q (want major.minor.patch)", def.Version))
	}
	if len(def.EntityTypes) == 0 {
		return cerr.TemplateError(cerr.ErrCodeTemplateNoTypes,
			fmt.Sprintf("template %q declares no entity types", def.ID))
	}

	types := make(map[string]struct{}, len(def.EntityTypes))
	for _, et := range def.EntityTypes {
		if et.Name == "" {
			return cerr.TemplateError(cerr.ErrCodeTemplateNoTypes,
				fmt.Sprintf("template %q has an entity type without a name", def.ID))
		}
		types[et.Name] = struct{}{}

		for _, f := range et.Fields {
			if f.Kind == KindEnum && len(f.Values) == 0 {
				return cerr.TemplateError(cerr.ErrCodeTemplateEnum,
					fmt.Sprintf("enum field %q of type %q has no value list", f.Name, et.Name))
			}
		}
	}

	for _, rt := range def.RelationshipTypes {
		for _, endpoint := range append(append([]string{}, rt.SourceTypes...), rt.TargetTypes...) {
			if endpoint == "any" {
				continue
			}
			if _, ok := types[endpoint]; !ok {
				return cerr.TemplateError(cerr.ErrCodeTemplateEndpoint,
					fmt.Sprintf("relationship %q names unknown entity type %q", rt.ID, endpoint))
			}
		}
		if rt.Bidirectional && rt.ReverseID == "" {
			return cerr.TemplateError(cerr.ErrCodeTemplateNoReverse,
				fmt.Sprintf("bidirectional relationship %q has no reverse id", rt.ID))
		}
	}

	return nil
}
