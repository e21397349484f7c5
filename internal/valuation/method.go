// Package valuation implements the valuation method contract and the two
// concrete methods: last-round-adjusted and comparable-company multiples.
// Each method either completes with a full audit trail or is cleanly
// skipped; there are no retries and no partial results.
package valuation

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/AshwinKadaruDev/vc-audit/internal/config"
	"github.com/AshwinKadaruDev/vc-audit/internal/loader"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
)

// Clock supplies "today" so round-age logic is testable. Defaults to
// time.Now at the engine boundary.
type Clock func() time.Time

// Method is the capability contract every valuation method implements.
type Method interface {
	Name() model.MethodName

	// CheckPrerequisites returns an empty string if the method can run,
	// otherwise a human-readable skip reason. It is pure apart from reads
	// through the data loader and is callable independently of Execute.
	CheckPrerequisites(ctx context.Context) string

	// Execute computes the valuation, building the audit trail along the
	// way. Only valid after CheckPrerequisites returned empty. An error
	// here is a broken internal invariant, not a recoverable condition.
	Execute(ctx context.Context) (model.MethodResult, error)
}

// Outcome is the result of one method run: exactly one of Result or
// Skipped is set.
type Outcome struct {
	Result  *model.MethodResult
	Skipped *model.MethodSkipped
}

// Run is the only entry point callers use. It checks prerequisites,
// recovering failures into a MethodSkipped, and otherwise delegates to
// Execute.
func Run(ctx context.Context, m Method) (Outcome, error) {
	if reason := m.CheckPrerequisites(ctx); reason != "" {
		return Outcome{Skipped: &model.MethodSkipped{Method: m.Name(), Reason: reason}}, nil
	}

	result, err := m.Execute(ctx)
	if err != nil {
		return Outcome{}, eris.Wrapf(err, "valuation: execute %s", m.Name())
	}
	return Outcome{Result: &result}, nil
}

// Factory builds a method instance bound to one company's data.
type Factory func(data model.CompanyData, cfg config.ValuationConfig, dl loader.DataLoader, now Clock) Method

type registration struct {
	name    model.MethodName
	factory Factory
}

// registry is the closed, ordered set of known methods. CreateAll follows
// this order, which also serves as the tie-break for primary selection.
var registry = []registration{
	{model.MethodLastRound, NewLastRound},
	{model.MethodComparables, NewComparables},
}

// CreateAll instantiates one bound method per registration, in
// registration order.
func CreateAll(data model.CompanyData, cfg config.ValuationConfig, dl loader.DataLoader, now Clock) []Method {
	methods := make([]Method, 0, len(registry))
	for _, r := range registry {
		methods = append(methods, r.factory(data, cfg, dl, now))
	}
	return methods
}

// Names lists all registered method names in registration order.
func Names() []model.MethodName {
	names := make([]model.MethodName, 0, len(registry))
	for _, r := range registry {
		names = append(names, r.name)
	}
	return names
}

// trail accumulates audit steps and warnings during one method execution.
// It is threaded explicitly through the computation rather than hidden in
// method state so each step function stays testable in isolation.
type trail struct {
	steps    []model.AuditStep
	warnings []string
}

func (t *trail) add(description string, inputs map[string]any, calculation, result string) {
	if inputs == nil {
		inputs = map[string]any{}
	}
	t.steps = append(t.steps, model.AuditStep{
		StepNumber:  len(t.steps) + 1,
		Description: description,
		Inputs:      inputs,
		Calculation: calculation,
		Result:      result,
	})
}

func (t *trail) warn(msg string) {
	t.warnings = append(t.warnings, msg)
}
