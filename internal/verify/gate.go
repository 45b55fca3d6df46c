// Package verify gates create and update mutations behind a pluggable
// proof verifier.
//
// A Gate holds at most one Verifier. Without one the gate is advisory and
// admits everything. With one, a mutation proceeds only when the verifier
// approves it; rejection happens before any store interaction.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
)

// Operation names the gated mutation.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
)

// Proof is the caller-supplied credential for a gated mutation.
type Proof struct {
	WalletAddress string          `json:"wallet_address"`
	Proof         json.RawMessage `json:"proof"`
	PublicSignals []string        `json:"public_signals"`
}

// Mutation describes what the caller wants to do.
// Create sets Document; update sets Filter and Update.
type Mutation struct {
	Kind      string
	Operation Operation
	Filter    queryir.Predicate
	Update    ir.IRObject
	Document  ir.Document
	// Digest is the content hash of Document, for proofs that commit to it.
	Digest string
}

// Verifier decides whether a mutation may proceed.
type Verifier interface {
	Verify(ctx context.Context, proof Proof, m Mutation) (bool, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, proof Proof, m Mutation) (bool, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, proof Proof, m Mutation) (bool, error) {
	return f(ctx, proof, m)
}

// ErrAlreadyRegistered is returned when a second verifier is registered.
var ErrAlreadyRegistered = errors.New("verifier already registered")

// Gate holds the registered verifier.
type Gate struct {
	mu       sync.RWMutex
	verifier Verifier
}

// NewGate creates a gate with no verifier.
func NewGate() *Gate {
	return &Gate{}
}

// Register installs v. Only one verifier may be registered per gate.
func (g *Gate) Register(v Verifier) error {
	if v == nil {
		return errors.New("register verifier: nil verifier")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifier != nil {
		return ErrAlreadyRegistered
	}
	g.verifier = v
	return nil
}

// Enforcing reports whether a verifier is registered.
func (g *Gate) Enforcing() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.verifier != nil
}

// Check runs the verifier against m. It returns nil when no verifier is
// registered or the verifier approves, and a *RejectedError otherwise.
func (g *Gate) Check(ctx context.Context, proof Proof, m Mutation) error {
	g.mu.RLock()
	v := g.verifier
	g.mu.RUnlock()

	if v == nil {
		return nil
	}

	ok, err := v.Verify(ctx, proof, m)
	if err != nil {
		return &RejectedError{
			Code:      ErrCodeVerifierFailed,
			Kind:      m.Kind,
			Operation: m.Operation,
			Cause:     err,
		}
	}
	if !ok {
		return &RejectedError{
			Code:      ErrCodeDenied,
			Kind:      m.Kind,
			Operation: m.Operation,
		}
	}
	return nil
}
