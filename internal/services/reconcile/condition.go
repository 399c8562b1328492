package reconcile

import (
	"fmt"

	"github.com/camarize/reconciler/internal/entities"
	"github.com/google/cel-go/cel"
)

// ConditionEngine compiles CEL anomaly conditions.
// Expressions see two variables: entity (the decoded document) and id.
type ConditionEngine struct {
	env *cel.Env
}

// Condition is a compiled, reusable anomaly predicate
type Condition struct {
	expression string
	program    cel.Program
}

// NewConditionEngine creates a CEL environment with the anomaly variables declared
func NewConditionEngine() (*ConditionEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("entity", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("id", cel.StringType),
		// Documents decode numbers as doubles; let `entity.capacity < 0` compare.
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &ConditionEngine{env: env}, nil
}

// Compile parses and checks an expression. It must evaluate to a boolean.
func (e *ConditionEngine) Compile(expression string) (*Condition, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression %q: %w", expression, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("CEL expression %q must return boolean, got: %s", expression, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return &Condition{expression: expression, program: program}, nil
}

// Eval reports whether the entity matches the condition
func (c *Condition) Eval(entity *entities.Entity) (bool, error) {
	fields := entity.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}

	result, _, err := c.program.Eval(map[string]interface{}{
		"entity": fields,
		"id":     entity.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression %q: %w", c.expression, err)
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression %q did not evaluate to boolean, got: %T", c.expression, result.Value())
	}
	return matched, nil
}

// String returns the source expression
func (c *Condition) String() string {
	return c.expression
}
