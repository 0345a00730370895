package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appraisalState() map[string]any {
	return map[string]any{
		"propertyType": "income",
		"scenarios": []any{
			map[string]any{"id": "s1", "approaches": []any{"sales", "income"}},
		},
		"subjectData": map[string]any{"address": map[string]any{"city": "Austin"}},
	}
}

// available returns every backend compiled into this build.
func available(t *testing.T) []Backend {
	t.Helper()
	var out []Backend
	for _, name := range []string{BackendExpr, BackendCEL, BackendJS} {
		backend, err := Lookup(name)
		if errors.Is(err, ErrBackendUnavailable) {
			continue
		}
		require.NoError(t, err)
		out = append(out, backend)
	}
	return out
}

func TestBackendsReadStateKeys(t *testing.T) {
	for _, backend := range available(t) {
		t.Run(backend.Name(), func(t *testing.T) {
			compiler := NewCompiler(WithBackend(backend))
			env := Env{State: appraisalState()}

			cond, err := compiler.Compile(`propertyType == "income"`)
			require.NoError(t, err)
			held, err := cond.Holds(env)
			require.NoError(t, err)
			assert.True(t, held)

			cond, err = compiler.Compile(`propertyType == "residential"`)
			require.NoError(t, err)
			held, err = cond.Holds(env)
			require.NoError(t, err)
			assert.False(t, held)
		})
	}
}

func TestBackendsCallBuiltins(t *testing.T) {
	for _, backend := range available(t) {
		t.Run(backend.Name(), func(t *testing.T) {
			compiler := NewCompiler(WithBackend(backend))
			env := Env{State: appraisalState()}

			for _, expr := range []string{
				`includes(scenarios[0].approaches, "income")`,
				`filled(subjectData.address.city)`,
				`count(scenarios) == 1`,
				`lookup(subjectData, "address.city") == "Austin"`,
				`lookup(scenarios, "0.id") == "s1"`,
				`!filled(lookup(subjectData, "site.inFloodArea"))`,
			} {
				cond, err := compiler.Compile(expr)
				require.NoError(t, err, expr)
				held, err := cond.Holds(env)
				require.NoError(t, err, expr)
				assert.True(t, held, expr)
			}
		})
	}
}

func TestBackendsSeeLocation(t *testing.T) {
	for _, backend := range available(t) {
		t.Run(backend.Name(), func(t *testing.T) {
			cond, err := NewCompiler(WithBackend(backend)).Compile(`section == "income" && tab == "rent-roll"`)
			require.NoError(t, err)
			held, err := cond.Holds(Env{State: appraisalState(), Section: "income", Tab: "rent-roll"})
			require.NoError(t, err)
			assert.True(t, held)
		})
	}
}

func TestReservedNamesShadowState(t *testing.T) {
	state := map[string]any{"section": "from state"}
	cond, err := NewCompiler().Compile(`section`)
	require.NoError(t, err)

	got, err := cond.Eval(Env{State: state, Section: "subject"})
	require.NoError(t, err)
	assert.Equal(t, "subject", got)
}

func TestExprTreatsMissingKeysAsNil(t *testing.T) {
	cond, err := NewCompiler().Compile(`notYetSet == nil`)
	require.NoError(t, err)
	held, err := cond.Holds(Env{State: appraisalState()})
	require.NoError(t, err)
	assert.True(t, held)
}

func TestCELChecksPerKeySet(t *testing.T) {
	backend, err := Lookup(BackendCEL)
	require.NoError(t, err)
	cond, err := NewCompiler(WithBackend(backend)).Compile(`floodPanel == true`)
	require.NoError(t, err)

	_, err = cond.Holds(Env{State: appraisalState()})
	require.Error(t, err, "undeclared variable")

	state := appraisalState()
	state["floodPanel"] = true
	held, err := cond.Holds(Env{State: state})
	require.NoError(t, err)
	assert.True(t, held)
}

func TestCELSyntaxErrorsSurfaceAtCompile(t *testing.T) {
	backend, err := Lookup(BackendCEL)
	require.NoError(t, err)
	_, err = NewCompiler(WithBackend(backend)).Compile(`propertyType ==`)
	require.Error(t, err)

	var ruleErr *Error
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, PhaseCompile, ruleErr.Phase)
	assert.Equal(t, BackendCEL, ruleErr.Backend)
}

func TestNowDefaultsToWallClock(t *testing.T) {
	cond, err := NewCompiler().Compile(`now`)
	require.NoError(t, err)

	got, err := cond.Eval(Env{})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got.(time.Time), time.Minute)

	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err = cond.Eval(Env{Now: fixed})
	require.NoError(t, err)
	assert.Equal(t, fixed, got)
}

func TestCompilerMemoizesByExpression(t *testing.T) {
	compiler := NewCompiler()
	first, err := compiler.Compile(`propertyType != nil`)
	require.NoError(t, err)
	second, err := compiler.Compile(`  propertyType != nil `)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, compiler.Len())
}

func TestCompilerRejectsBlankExpressions(t *testing.T) {
	_, err := NewCompiler().Compile("   ")
	require.ErrorIs(t, err, ErrEmptyExpression)
}

func TestCustomFunctions(t *testing.T) {
	funcs := Builtins().With("isCommercial", func(args ...any) (any, error) {
		return len(args) == 1 && args[0] == "commercial", nil
	})
	compiler := NewCompiler(WithFunctions(funcs))
	cond, err := compiler.Compile(`isCommercial(propertyType)`)
	require.NoError(t, err)

	held, err := cond.Holds(Env{State: map[string]any{"propertyType": "commercial"}})
	require.NoError(t, err)
	assert.True(t, held)

	cond, err = NewCompiler().Compile(`isCommercial(propertyType)`)
	if err == nil {
		_, err = cond.Holds(Env{State: map[string]any{"propertyType": "commercial"}})
	}
	assert.Error(t, err, "not registered by default")
}

func TestLookup(t *testing.T) {
	backend, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, BackendExpr, backend.Name())

	backend, err = Lookup(" CEL ")
	require.NoError(t, err)
	assert.Equal(t, BackendCEL, backend.Name())

	_, err = Lookup("lua")
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestFilled(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"blank string", "   ", false},
		{"string", "x", true},
		{"zero number", float64(0), true},
		{"false", false, true},
		{"empty list", []any{}, false},
		{"list", []any{1}, true},
		{"empty map", map[string]any{}, false},
		{"typed slice", []string{"a"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Filled(tc.value))
		})
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy(1))
}
