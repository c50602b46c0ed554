package shim

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseContract(t *testing.T, name string, sigs ...string) *Contract {
	t.Helper()
	ct, err := ParseContract(name, sigs...)
	require.NoError(t, err)
	return ct
}

func TestAnalyzeAbstractMethods(t *testing.T) {
	ct := mustParseContract(t, "Calculator", "applyAsInt(int, int) int", "describe() string")

	desc, err := analyze([]*Contract{ct}, OverrideNone, nil, nil)
	require.NoError(t, err)

	methods := desc.Methods()
	require.Len(t, methods, 2)
	assert.Equal(t, "applyAsInt", methods[0].Signature.Name)
	assert.Equal(t, AbstractMethod, methods[0].Kind)
	assert.Equal(t, 0, methods[0].Ordinal)
	assert.Equal(t, 1, methods[1].Ordinal)
	assert.Equal(t, "Calculator", methods[0].Contract)
}

func TestAnalyzeUniversalOperations(t *testing.T) {
	ct := mustParseContract(t, "C", "f() int")

	t.Run("excluded by policy", func(t *testing.T) {
		desc, err := analyze([]*Contract{ct}, OverrideNone, nil, nil)
		require.NoError(t, err)
		require.Len(t, desc.Methods(), 1)
	})

	t.Run("included by policy", func(t *testing.T) {
		desc, err := analyze([]*Contract{ct}, OverrideAll, nil, nil)
		require.NoError(t, err)

		methods := desc.Methods()
		require.Len(t, methods, 4)
		assert.Equal(t, "Equals", methods[0].Signature.Name)
		assert.Equal(t, "HashCode", methods[1].Signature.Name)
		assert.Equal(t, "String", methods[2].Signature.Name)
		assert.Equal(t, "f", methods[3].Signature.Name)
		for _, m := range methods[:3] {
			assert.Equal(t, UniversalMethod, m.Kind)
			assert.Equal(t, universalContract, m.Contract)
		}
	})

	t.Run("selective policy", func(t *testing.T) {
		onlyHash := func(m MethodInfo) bool {
			return m.Kind == UniversalMethod && m.Signature.Name == "HashCode"
		}
		desc, err := analyze([]*Contract{ct}, onlyHash, nil, nil)
		require.NoError(t, err)

		methods := desc.Methods()
		require.Len(t, methods, 2)
		assert.Equal(t, "HashCode", methods[0].Signature.Name)
	})
}

func TestAnalyzeUniversalClaimsSlotFirst(t *testing.T) {
	// The contract declares its own String() string; when the policy also
	// selects the universal String, the universal slot wins and the
	// contract method dedupes away.
	ct := mustParseContract(t, "Named", "String() string", "f() int")

	desc, err := analyze([]*Contract{ct}, OverrideAll, nil, nil)
	require.NoError(t, err)

	var stringMethods []MethodInfo
	for _, m := range desc.Methods() {
		if m.Signature.Name == "String" {
			stringMethods = append(stringMethods, m)
		}
	}
	require.Len(t, stringMethods, 1)
	assert.Equal(t, UniversalMethod, stringMethods[0].Kind)

	// Without the policy the contract's own String stays abstract
	desc, err = analyze([]*Contract{ct}, OverrideNone, nil, nil)
	require.NoError(t, err)
	require.Len(t, desc.Methods(), 2)
	assert.Equal(t, AbstractMethod, desc.Methods()[0].Kind)
	assert.Equal(t, "String", desc.Methods()[0].Signature.Name)
}

func TestAnalyzeDeduplicatesAcrossContracts(t *testing.T) {
	first := mustParseContract(t, "First", "f(int) int", "g() string")
	second := mustParseContract(t, "Second", "f(int) int", "h() bool")

	desc, err := analyze([]*Contract{first, second}, OverrideNone, nil, nil)
	require.NoError(t, err)

	methods := desc.Methods()
	require.Len(t, methods, 3)
	assert.Equal(t, "f", methods[0].Signature.Name)
	assert.Equal(t, "First", methods[0].Contract) // first-seen wins
	assert.Equal(t, "g", methods[1].Signature.Name)
	assert.Equal(t, "h", methods[2].Signature.Name)
	assert.Equal(t, []string{"First", "Second"}, desc.Contracts())
}

func TestAnalyzeOverloadsAreDistinct(t *testing.T) {
	ct := mustParseContract(t, "C", "f(int) int", "f(string) string")

	desc, err := analyze([]*Contract{ct}, OverrideNone, nil, nil)
	require.NoError(t, err)
	require.Len(t, desc.Methods(), 2)
}

func TestAnalyzePolicyConsultedOncePerMethod(t *testing.T) {
	ct, err := NewContract("Greeter").
		Method("Greet", (func(string) string)(nil)).
		Default("GreetAll", func(p *Instance, names []string) string { return "" }).
		Build()
	require.NoError(t, err)

	calls := make(map[string]int)
	policy := func(m MethodInfo) bool {
		calls[m.Signature.Name]++
		return false
	}

	_, err = analyze([]*Contract{ct}, policy, nil, nil)
	require.NoError(t, err)

	// Three universal operations plus the one default-bodied method;
	// abstract methods never consult the policy.
	assert.Equal(t, map[string]int{
		"Equals":   1,
		"HashCode": 1,
		"String":   1,
		"GreetAll": 1,
	}, calls)
}

func TestAnalyzeDefaultMethodDecision(t *testing.T) {
	build := func() *Contract {
		ct, err := NewContract("Greeter").
			Default("Greet", func(p *Instance, name string) string { return "hi " + name }).
			Build()
		require.NoError(t, err)
		return ct
	}

	t.Run("kept default has no call site", func(t *testing.T) {
		desc, err := analyze([]*Contract{build()}, OverrideNone, nil, nil)
		require.NoError(t, err)

		methods := desc.Methods()
		require.Len(t, methods, 1)
		assert.Equal(t, DefaultMethod, methods[0].Kind)
		assert.Equal(t, -1, methods[0].Ordinal)
	})

	t.Run("overridden default resolves through the resolver", func(t *testing.T) {
		desc, err := analyze([]*Contract{build()}, OverrideAll, nil, nil)
		require.NoError(t, err)

		methods := desc.Methods()
		// OverrideAll also pulls in the three universal operations
		require.Len(t, methods, 4)
		greet := methods[3]
		assert.Equal(t, DefaultMethod, greet.Kind)
		assert.Equal(t, 3, greet.Ordinal)
	})

	t.Run("defaults policy takes precedence", func(t *testing.T) {
		keep := keepDefaultsPolicy{}
		desc, err := analyze([]*Contract{build()}, OverrideAll, keep, nil)
		require.NoError(t, err)

		methods := desc.Methods()
		require.Len(t, methods, 4)
		assert.Equal(t, -1, methods[3].Ordinal)
	})
}

// keepDefaultsPolicy keeps every default body
type keepDefaultsPolicy struct{}

func (keepDefaultsPolicy) OverrideDefault(MethodInfo) bool { return false }

func TestAnalyzeErrors(t *testing.T) {
	t.Run("no contracts", func(t *testing.T) {
		_, err := analyze(nil, OverrideNone, nil, nil)
		assert.True(t, IsArgumentError(err))
	})

	t.Run("nil contract", func(t *testing.T) {
		_, err := analyze([]*Contract{nil}, OverrideNone, nil, nil)
		assert.True(t, IsArgumentError(err))
	})

	t.Run("delegate with no resolvable method", func(t *testing.T) {
		ct, err := NewContract("AllDefaults").
			Default("F", func(p *Instance) int { return 1 }).
			Build()
		require.NoError(t, err)

		_, err = analyze([]*Contract{ct}, OverrideNone, nil, reflect.TypeOf(0))
		require.Error(t, err)
		assert.True(t, IsArgumentError(err))
	})
}

func TestAnalyzeDelegateThreadedIntoMethodInfo(t *testing.T) {
	ct := mustParseContract(t, "C", "f() int")

	desc, err := analyze([]*Contract{ct}, OverrideNone, nil, reflect.TypeOf(0))
	require.NoError(t, err)

	m := desc.Methods()[0]
	assert.True(t, m.HasDelegate())
	assert.Equal(t, intType, m.DelegateType)
	assert.Equal(t, intType, desc.DelegateType())
}
