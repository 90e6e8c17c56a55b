/*
factory.go - Tag-to-strategy registry and generator factory

PURPOSE:
  Maps a field descriptor's generator tag to a concrete strategy. The mapping
  is an explicit Registry constructed at startup and passed in - no ambient
  global state - so wiring is visible and testable.

COMPATIBILITY:
  The factory refuses tags that contradict the field's multiplicity before a
  run starts (e.g. a manual field mapped to the periodic generator). These are
  ConfigurationErrors, never retried.

EXTENSION:
  Domain packages register additional strategies on the Registry at startup.
  The insurance package does this for the rate-derived generator.
*/
package receivables

import "fmt"

// StrategyConstructor builds a strategy for one field descriptor.
type StrategyConstructor func(field FieldDescriptor) (GeneratorStrategy, error)

// =============================================================================
// REGISTRY - Explicit, constructed tag mapping
// =============================================================================

type Registry struct {
	constructors map[GeneratorTag]StrategyConstructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[GeneratorTag]StrategyConstructor)}
}

// Register binds a tag to a constructor. Later registrations replace earlier
// ones, which keeps test wiring simple.
func (r *Registry) Register(tag GeneratorTag, c StrategyConstructor) {
	r.constructors[tag] = c
}

// DefaultRegistry returns a registry with the built-in strategies. Callers
// wire domain strategies (rate-derived) on top before constructing a Factory.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TagPeriodic, func(FieldDescriptor) (GeneratorStrategy, error) {
		return &PeriodicGenerator{}, nil
	})
	r.Register(TagManual, func(FieldDescriptor) (GeneratorStrategy, error) {
		return &ManualGenerator{}, nil
	})
	r.Register(TagNoOp, func(FieldDescriptor) (GeneratorStrategy, error) {
		return &NoOpGenerator{}, nil
	})
	return r
}

// =============================================================================
// FACTORY - Strategy selection with compatibility checks
// =============================================================================

type Factory struct {
	registry *Registry
}

func NewFactory(registry *Registry) *Factory {
	return &Factory{registry: registry}
}

// ForField returns the strategy for the field descriptor, or a
// *ConfigurationError when the tag is unknown or incompatible.
func (f *Factory) ForField(field FieldDescriptor) (GeneratorStrategy, error) {
	if field.Kind != KindReceivable {
		return nil, &ConfigurationError{
			FieldID:      field.ID,
			Generator:    field.Generator,
			Multiplicity: field.Multiplicity,
			Reason:       fmt.Sprintf("kind %q is not a receivable", field.Kind),
		}
	}

	if reason, ok := incompatible(field.Generator, field.Multiplicity); ok {
		return nil, &ConfigurationError{
			FieldID:      field.ID,
			Generator:    field.Generator,
			Multiplicity: field.Multiplicity,
			Reason:       reason,
		}
	}

	construct, ok := f.registry.constructors[field.Generator]
	if !ok {
		return nil, &ConfigurationError{
			FieldID:      field.ID,
			Generator:    field.Generator,
			Multiplicity: field.Multiplicity,
			Reason:       "generator tag is not registered",
		}
	}

	strategy, err := construct(field)
	if err != nil {
		return nil, fmt.Errorf("construct generator %q for field %s: %w", field.Generator, field.ID, err)
	}
	return strategy, nil
}

// incompatible encodes the allowed tag/multiplicity combinations. Tags
// registered by domain packages outside this set pass unrestricted.
func incompatible(tag GeneratorTag, m Multiplicity) (string, bool) {
	switch tag {
	case TagPeriodic, TagRateDerived:
		if m != MultiplicityRecurring {
			return fmt.Sprintf("generator %q requires recurring multiplicity", tag), true
		}
	case TagManual:
		if m != MultiplicityManual {
			return "manual generator requires manual multiplicity", true
		}
	}
	return "", false
}
