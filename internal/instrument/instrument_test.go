package instrument

import (
	"testing"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidES(t *testing.T) {
	inst, err := New("CON.F.CME.ES.Z25", "es", money.MustNew("0.25"), money.MustNew("12.50"), "America/Chicago")
	require.NoError(t, err)
	assert.Equal(t, "ES", inst.Symbol)
}

func TestNew_RejectsBadContractID(t *testing.T) {
	_, err := New("garbage", "ES", money.MustNew("0.25"), money.MustNew("12.50"), "America/Chicago")
	assert.Error(t, err)
}

func TestNew_RejectsNonPositiveTick(t *testing.T) {
	_, err := New("CON.F.CME.ES.Z25", "ES", money.Zero, money.MustNew("12.50"), "America/Chicago")
	assert.Error(t, err)
}

func TestAlign(t *testing.T) {
	inst, require_ := New("CON.F.CME.ES.Z25", "ES", money.MustNew("0.25"), money.MustNew("12.50"), "America/Chicago")
	if require_ != nil {
		t.Fatal(require_)
	}
	aligned, adjusted := inst.Align(money.MustNew("5137.62"))
	assert.True(t, adjusted)
	assert.True(t, aligned.Equal(money.MustNew("5137.50")))
}
