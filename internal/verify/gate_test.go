package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/ir"
)

func createMutation() Mutation {
	return Mutation{
		Kind:      "Item",
		Operation: OpCreate,
		Document:  ir.Document{"id": ir.IRString("X")},
	}
}

func TestGate_NoVerifierIsAdvisory(t *testing.T) {
	g := NewGate()
	assert.False(t, g.Enforcing())
	assert.NoError(t, g.Check(context.Background(), Proof{}, createMutation()))
}

func TestGate_Approves(t *testing.T) {
	g := NewGate()
	var seen Mutation
	var seenProof Proof
	require.NoError(t, g.Register(VerifierFunc(func(_ context.Context, p Proof, m Mutation) (bool, error) {
		seen = m
		seenProof = p
		return true, nil
	})))

	proof := Proof{WalletAddress: "0xabc", Proof: []byte(`{"pi":1}`), PublicSignals: []string{"1"}}
	require.NoError(t, g.Check(context.Background(), proof, createMutation()))
	assert.Equal(t, "Item", seen.Kind)
	assert.Equal(t, OpCreate, seen.Operation)
	assert.Equal(t, "0xabc", seenProof.WalletAddress)
}

func TestGate_Denies(t *testing.T) {
	g := NewGate()
	require.NoError(t, g.Register(VerifierFunc(func(context.Context, Proof, Mutation) (bool, error) {
		return false, nil
	})))

	err := g.Check(context.Background(), Proof{}, createMutation())
	require.Error(t, err)
	assert.True(t, IsRejected(err))

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ErrCodeDenied, rej.Code)
	assert.Contains(t, err.Error(), "create Item rejected")
}

func TestGate_VerifierErrorRejects(t *testing.T) {
	g := NewGate()
	boom := errors.New("rpc down")
	require.NoError(t, g.Register(VerifierFunc(func(context.Context, Proof, Mutation) (bool, error) {
		return true, boom
	})))

	err := g.Check(context.Background(), Proof{}, createMutation())
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, boom)

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ErrCodeVerifierFailed, rej.Code)
}

func TestGate_RegisterOnce(t *testing.T) {
	g := NewGate()
	allow := VerifierFunc(func(context.Context, Proof, Mutation) (bool, error) { return true, nil })

	require.NoError(t, g.Register(allow))
	assert.ErrorIs(t, g.Register(allow), ErrAlreadyRegistered)
	assert.Error(t, NewGate().Register(nil))
}
