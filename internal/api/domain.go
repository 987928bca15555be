package api

import (
	"fmt"

	"github.com/JaimeStill/clearance/internal/documents"
	"github.com/JaimeStill/clearance/internal/overrides"
	"github.com/JaimeStill/clearance/internal/presence"
	"github.com/JaimeStill/clearance/internal/rules"
	"github.com/JaimeStill/clearance/internal/shipments"
	"github.com/JaimeStill/clearance/internal/validation"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Shipments  shipments.System
	Documents  documents.System
	Overrides  overrides.System
	Validation validation.System
}

// NewDomain creates all domain systems from the API runtime. The rule set
// and requirements table load from the configured files, falling back to
// the embedded defaults.
func NewDomain(runtime *Runtime) (*Domain, error) {
	set, err := rules.LoadFile(runtime.Validation.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	table, err := presence.LoadTableFile(runtime.Validation.RequirementsFile)
	if err != nil {
		return nil, fmt.Errorf("load requirements: %w", err)
	}

	db := runtime.Database.Connection()

	shipmentsSystem := shipments.New(
		db,
		runtime.Logger,
		runtime.Pagination,
	)

	docsSystem := documents.New(
		db,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	overridesSystem := overrides.New(
		db,
		runtime.Logger,
		runtime.Pagination,
		runtime.Validation.OverrideMinReason,
	)

	validationSystem := validation.New(
		&validation.Runtime{
			Shipments: shipmentsSystem,
			Documents: docsSystem,
			Overrides: overridesSystem,
			Reports:   validation.NewReports(db),
			Rules:     set,
			Table:     table,
			Metrics:   validation.NewMetrics(runtime.Metrics),
			Logger:    runtime.Logger,
		},
		runtime.Validation.BatchConcurrency,
	)

	runtime.Logger.Info("rules loaded",
		"rules", set.Len(),
		"rules_file", runtime.Validation.RulesFile,
		"requirements_file", runtime.Validation.RequirementsFile,
	)

	return &Domain{
		Shipments:  shipmentsSystem,
		Documents:  docsSystem,
		Overrides:  overridesSystem,
		Validation: validationSystem,
	}, nil
}
