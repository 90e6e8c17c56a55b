package receivables_test

import (
	"errors"
	"testing"

	"github.com/camerata/receivables-engine/receivables"
)

// =============================================================================
// TAG / MULTIPLICITY COMPATIBILITY
// =============================================================================

func descriptor(tag receivables.GeneratorTag, m receivables.Multiplicity) receivables.FieldDescriptor {
	return receivables.FieldDescriptor{
		ID:           "fee",
		ProjectID:    "proj",
		Kind:         receivables.KindReceivable,
		Multiplicity: m,
		Generator:    tag,
	}
}

func TestFactory_PeriodicRecurring_Allowed(t *testing.T) {
	f := receivables.NewFactory(receivables.DefaultRegistry())

	strategy, err := f.ForField(descriptor(receivables.TagPeriodic, receivables.MultiplicityRecurring))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := strategy.(*receivables.PeriodicGenerator); !ok {
		t.Errorf("expected PeriodicGenerator, got %T", strategy)
	}
}

func TestFactory_PeriodicOnManualField_Rejected(t *testing.T) {
	// GIVEN: A manual-multiplicity field mapped to the periodic generator
	// WHEN: Resolving the strategy
	// THEN: A ConfigurationError is returned before any run starts

	f := receivables.NewFactory(receivables.DefaultRegistry())

	_, err := f.ForField(descriptor(receivables.TagPeriodic, receivables.MultiplicityManual))

	var confErr *receivables.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
	if confErr.FieldID != "fee" {
		t.Errorf("error names wrong field: %+v", confErr)
	}
}

func TestFactory_ManualOnRecurringField_Rejected(t *testing.T) {
	f := receivables.NewFactory(receivables.DefaultRegistry())

	_, err := f.ForField(descriptor(receivables.TagManual, receivables.MultiplicityRecurring))

	var confErr *receivables.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestFactory_UnregisteredTag_Rejected(t *testing.T) {
	// The default registry has no rate-derived constructor; domain packages
	// register it explicitly.
	f := receivables.NewFactory(receivables.DefaultRegistry())

	_, err := f.ForField(descriptor(receivables.TagRateDerived, receivables.MultiplicityRecurring))

	var confErr *receivables.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestFactory_NonReceivableKind_Rejected(t *testing.T) {
	f := receivables.NewFactory(receivables.DefaultRegistry())

	fd := descriptor(receivables.TagPeriodic, receivables.MultiplicityRecurring)
	fd.Kind = "attachment"

	_, err := f.ForField(fd)

	var confErr *receivables.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	// Test wiring replaces the built-in periodic strategy.
	registry := receivables.DefaultRegistry()
	registry.Register(receivables.TagPeriodic, func(receivables.FieldDescriptor) (receivables.GeneratorStrategy, error) {
		return &receivables.NoOpGenerator{}, nil
	})

	f := receivables.NewFactory(registry)
	strategy, err := f.ForField(descriptor(receivables.TagPeriodic, receivables.MultiplicityRecurring))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := strategy.(*receivables.NoOpGenerator); !ok {
		t.Errorf("expected replacement strategy, got %T", strategy)
	}
}
