package metadata

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	"tombstone/internal/core/apperror"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// validate is the validator instance for declarations.
// Initialized in init() with the sqlident rule.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return identRe.MatchString(fl.Field().String())
	})
}

// CounterLink says that transitions of MemberType move a counter on an owner row.
type CounterLink struct {
	MemberType string
	// OwnerType is empty when the owner type is read from TypeColumn.
	OwnerType  string
	ForeignKey string
	TypeColumn string
	Column     string
	// Relation is the declaring side, "type.relation".
	Relation string
}

// Registry stores type definitions.
// Register every type, then call Finalize before handing it to the engine.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]*TypeDef
	order    []string
	counters map[string][]CounterLink
	final    bool
}

func NewRegistry() *Registry {
	return &Registry{
		types:    make(map[string]*TypeDef),
		counters: make(map[string][]CounterLink),
	}
}

// Register validates and stores a type definition.
func (r *Registry) Register(def TypeDef) error {
	if def.Table == "" {
		def.Table = def.Name
	}
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("type %q: %w", def.Name, err)
	}
	for _, c := range def.Columns {
		if c.Name == ColumnID || c.Name == ColumnDestroyedAt {
			return fmt.Errorf("type %q: column %q is reserved", def.Name, c.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.types[def.Name]; dup {
		return fmt.Errorf("type %q already registered", def.Name)
	}
	d := def
	r.types[def.Name] = &d
	r.order = append(r.order, def.Name)
	r.final = false
	return nil
}

// RegisterModel registers the type derived from a struct with db tags.
func (r *Registry) RegisterModel(model any, name string, relations ...RelationDef) error {
	return r.Register(Inspect(model, name, relations...))
}

// MustRegister is Register for static declarations. Panics on error.
func (r *Registry) MustRegister(defs ...TypeDef) *Registry {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns a type definition.
func (r *Registry) Get(name string) (*TypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[name]
	return d, ok
}

// Lookup is Get that reports unknown types as an AppError.
func (r *Registry) Lookup(name string) (*TypeDef, error) {
	if d, ok := r.Get(name); ok {
		return d, nil
	}
	return nil, apperror.NewUnknownType(name)
}

// List returns definitions in registration order.
func (r *Registry) List() []*TypeDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*TypeDef, 0, len(r.order))
	for _, n := range r.order {
		list = append(list, r.types[n])
	}
	return list
}

// CounterLinks returns the counters moved by transitions of memberType.
func (r *Registry) CounterLinks(memberType string) []CounterLink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[memberType]
}

// Finalize cross-checks relations and computes counter links.
func (r *Registry) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range r.order {
		def := r.types[name]
		seen := make(map[string]bool)
		for _, rel := range def.Relations {
			if seen[rel.Name] {
				errs = append(errs, fmt.Errorf("%s.%s: duplicate relation", name, rel.Name))
			}
			seen[rel.Name] = true
			if err := r.checkRelation(def, rel); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", name, rel.Name, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	r.counters = r.buildCounterLinks()
	r.markCounterColumns()
	r.final = true
	return nil
}

// Finalized reports whether Finalize succeeded after the last Register.
func (r *Registry) Finalized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.final
}

func (r *Registry) checkRelation(def *TypeDef, rel RelationDef) error {
	if rel.Polymorphic() {
		if rel.TypeColumn == "" {
			return errors.New("polymorphic belongs_to requires type_column")
		}
		if !def.HasColumn(rel.ForeignKey) || !def.HasColumn(rel.TypeColumn) {
			return fmt.Errorf("columns %q and %q must exist on %s", rel.ForeignKey, rel.TypeColumn, def.Name)
		}
		return nil
	}

	target, ok := r.types[rel.Target]
	if !ok {
		return fmt.Errorf("unknown target type %q", rel.Target)
	}
	if _, ok := rel.Resolve(target, false); !ok {
		return fmt.Errorf("dependent %q requires %s to have %s", rel.Dependent, target.Name, ColumnDestroyedAt)
	}

	switch rel.Kind {
	case BelongsTo:
		if !def.HasColumn(rel.ForeignKey) {
			return fmt.Errorf("foreign key %q missing on %s", rel.ForeignKey, def.Name)
		}
		if rel.TypeColumn != "" && !def.HasColumn(rel.TypeColumn) {
			return fmt.Errorf("type column %q missing on %s", rel.TypeColumn, def.Name)
		}
		if rel.CounterCache != "" {
			if c, ok := target.Column(rel.CounterCache); !ok || c.Kind != KindInteger {
				return fmt.Errorf("counter cache %q must be an integer column on %s", rel.CounterCache, target.Name)
			}
		}
	default:
		if !target.HasColumn(rel.ForeignKey) {
			return fmt.Errorf("foreign key %q missing on %s", rel.ForeignKey, target.Name)
		}
		if rel.TypeColumn != "" && !target.HasColumn(rel.TypeColumn) {
			return fmt.Errorf("type column %q missing on %s", rel.TypeColumn, target.Name)
		}
		if rel.CounterCache != "" {
			if rel.Kind != HasMany {
				return errors.New("counter cache requires has_many")
			}
			if c, ok := def.Column(rel.CounterCache); !ok || c.Kind != KindInteger {
				return fmt.Errorf("counter cache %q must be an integer column on %s", rel.CounterCache, def.Name)
			}
		}
	}
	return nil
}

func (r *Registry) buildCounterLinks() map[string][]CounterLink {
	links := make(map[string][]CounterLink)

	// belongs_to side first: it owns the counter when both sides declare it.
	for _, name := range r.order {
		for _, rel := range r.types[name].Relations {
			if rel.Kind != BelongsTo || rel.CounterCache == "" {
				continue
			}
			links[name] = append(links[name], CounterLink{
				MemberType: name,
				OwnerType:  rel.Target,
				ForeignKey: rel.ForeignKey,
				TypeColumn: rel.TypeColumn,
				Column:     rel.CounterCache,
				Relation:   name + "." + rel.Name,
			})
		}
	}

	for _, name := range r.order {
		for _, rel := range r.types[name].Relations {
			if rel.Kind != HasMany || rel.CounterCache == "" {
				continue
			}
			if r.inverseMaintains(name, rel) {
				continue
			}
			links[rel.Target] = append(links[rel.Target], CounterLink{
				MemberType: rel.Target,
				OwnerType:  name,
				ForeignKey: rel.ForeignKey,
				TypeColumn: rel.TypeColumn,
				Column:     rel.CounterCache,
				Relation:   name + "." + rel.Name,
			})
		}
	}
	return links
}

// markCounterColumns flags counter columns on their owner types. A
// polymorphic link flags every type carrying an integer column of that name.
func (r *Registry) markCounterColumns() {
	for _, def := range r.types {
		def.counters = nil
	}
	for _, links := range r.counters {
		for _, l := range links {
			if l.OwnerType != "" {
				r.types[l.OwnerType].markCounter(l.Column)
				continue
			}
			for _, def := range r.types {
				if c, ok := def.Column(l.Column); ok && c.Kind == KindInteger {
					def.markCounter(l.Column)
				}
			}
		}
	}
}

// inverseMaintains reports whether the member type declares a belongs_to
// back to owner that already keeps the same counter column.
func (r *Registry) inverseMaintains(owner string, rel RelationDef) bool {
	member := r.types[rel.Target]
	for _, inv := range member.Relations {
		if inv.Kind != BelongsTo || inv.ForeignKey != rel.ForeignKey || inv.CounterCache != rel.CounterCache {
			continue
		}
		if inv.Target == owner || (inv.Polymorphic() && inv.TypeColumn == rel.TypeColumn) {
			return true
		}
	}
	return false
}
