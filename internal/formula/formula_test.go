package formula

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		in      Inputs
		want    float64
	}{
		{"if picks compra", "IF(price.actual > price.compra, price.actual, price.compra)", Inputs{Actual: 100, Compra: 120}, 120},
		{"if picks actual", "IF(price.actual > price.compra, price.actual, price.compra)", Inputs{Actual: 150, Compra: 120}, 150},
		{"bare price aliases actual", "price * 1.21", Inputs{Actual: 100}, 121},
		{"leading equals", "=price.compra * 1.3", Inputs{Compra: 10}, 13},
		{"precedence", "2 + 3 * 4", Inputs{}, 14},
		{"parentheses", "(2 + 3) * 4", Inputs{}, 20},
		{"unary minus", "-price + 5", Inputs{Actual: 3}, 2},
		{"unary plus", "+price", Inputs{Actual: 3}, 3},
		{"rounded to cents", "10 / 3", Inputs{}, 3.33},
		{"rounds half up", "price * 1", Inputs{Actual: 0.125}, 0.13},
		{"keywords are case-insensitive", "if(price > 1, 1, 0)", Inputs{Actual: 5}, 1},
		{"identifiers are case-insensitive", "PRICE.Compra + 1", Inputs{Compra: 1}, 2},
		{"single equals compares", "IF(price = 100, 1, 2)", Inputs{Actual: 100}, 1},
		{"angle not-equal", "IF(price <> 100, 1, 2)", Inputs{Actual: 100}, 2},
		{"textual AND", "IF(price > 100 AND price.compra < 50, 1, 2)", Inputs{Actual: 120, Compra: 40}, 1},
		{"textual OR", "IF(price > 100 OR price.compra < 50, 1, 2)", Inputs{Actual: 10, Compra: 60}, 2},
		{"symbolic AND", "IF(price >= 1 && price <= 2, 7, 8)", Inputs{Actual: 2}, 7},
		{"nested IF", "IF(price > 100, IF(price > 200, 3, 2), 1)", Inputs{Actual: 250}, 3},
		{"nested IF else branch", "IF(price > 100, IF(price > 200, 3, 2), 1)", Inputs{Actual: 150}, 2},
		{"numeric condition", "IF(price, 1, 0)", Inputs{Actual: 0}, 0},
		{"margin", "price.compra * (1 + 35 / 100)", Inputs{Compra: 200}, 270},
		{"leading dot literal", "price * .5", Inputs{Actual: 9}, 4.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.formula, tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		wantErr error
	}{
		{"logical without comparison", "price * AND", ErrLogicalWithoutComparison},
		{"OR without comparison", "1 OR 2", ErrLogicalWithoutComparison},
		{"symbolic without comparison", "price && 2", ErrLogicalWithoutComparison},
		{"empty", "   ", ErrEmpty},
		{"only equals", "=", ErrEmpty},
		{"dangling operator", "price +", ErrSyntax},
		{"unknown identifier", "cost * 2", ErrSyntax},
		{"partial identifier", "price. * 2", ErrSyntax},
		{"IF needs three arguments", "IF(price > 1, 2)", ErrSyntax},
		{"IF needs parentheses", "IF price > 1", ErrSyntax},
		{"unbalanced parentheses", "(price * 2", ErrSyntax},
		{"stray close", "price * 2)", ErrSyntax},
		{"unknown character", "price # 2", ErrSyntax},
		{"chained comparison", "IF(1 < 2 < 3, 1, 0)", ErrSyntax},
		{"comma decimals are not numbers", "price * 1,5", ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.formula)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		in      Inputs
		wantErr error
	}{
		{"division by zero", "price / price.compra", Inputs{Actual: 1}, ErrNonFinite},
		{"zero by zero", "price / price.compra", Inputs{}, ErrNonFinite},
		{"boolean result", "price > 1", Inputs{Actual: 5}, ErrNotNumeric},
		{"boolean literal", "TRUE", Inputs{}, ErrNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.formula)
			require.NoError(t, err)
			_, err = p.Eval(tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProgramString(t *testing.T) {
	p, err := Compile("price + 1 * 2")
	require.NoError(t, err)
	assert.Equal(t, "(price.actual + (1 * 2))", p.String())
	assert.Equal(t, "price + 1 * 2", p.Source())

	p, err = Compile("if(price.compra > 1 or price < 2, 1, -price)")
	require.NoError(t, err)
	assert.Equal(t, "IF(((price.compra > 1) OR (price.actual < 2)), 1, (-price.actual))", p.String())
}

func TestProgramConcurrentEval(t *testing.T) {
	p, err := Compile("IF(price > price.compra, price, price.compra) * 2")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := p.Eval(Inputs{Actual: float64(i), Compra: 8})
			assert.NoError(t, err)
			want := 16.0
			if i > 8 {
				want = float64(i) * 2
			}
			assert.InDelta(t, want, got, 1e-9)
		}(i)
	}
	wg.Wait()
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.234))
	assert.Equal(t, -1.24, Round2(-1.236))
	assert.Equal(t, 0.0, Round2(-0.001))
}

func TestProgramUses(t *testing.T) {
	tests := []struct {
		formula        string
		actual, compra bool
	}{
		{"price * 2", true, false},
		{"price.compra * 1.3", false, true},
		{"-price.compra", false, true},
		{"IF(price.actual > 0, 1, price.compra)", true, true},
		{"42", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			p, err := Compile(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.actual, p.Uses(InputActual))
			assert.Equal(t, tt.compra, p.Uses(InputCompra))
		})
	}
}
