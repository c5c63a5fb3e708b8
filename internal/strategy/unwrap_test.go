package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapperDetect(t *testing.T) {
	u := NewUnwrapper(newFakeChain(), nil, discardLogger())

	plain, err := u.Detect(context.Background(), tokenDAI)
	require.NoError(t, err)
	assert.False(t, plain.Protected)
	assert.Equal(t, eDAI, plain.CollateralEToken)
	assert.Equal(t, uint8(18), plain.Decimals)

	prot, err := u.Detect(context.Background(), pTokenDAI)
	require.NoError(t, err)
	assert.True(t, prot.Protected)
	assert.Equal(t, tokenDAI, prot.Unwrapped)
	assert.Equal(t, ePDAI, prot.CollateralEToken)
	assert.Equal(t, eDAI, prot.UnwrappedEToken)
}

func TestEnsureApprovalWithoutTransactor(t *testing.T) {
	chain := newFakeChain()
	u := NewUnwrapper(chain, nil, discardLogger())

	info, err := u.Detect(context.Background(), pTokenDAI)
	require.NoError(t, err)
	assert.Error(t, u.EnsureApproval(context.Background(), liquidator, info))

	plain, err := u.Detect(context.Background(), tokenDAI)
	require.NoError(t, err)
	assert.NoError(t, u.EnsureApproval(context.Background(), liquidator, plain))
}
