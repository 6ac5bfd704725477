// =============================
// File: internal/client/provider.go
// =============================
package client

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/curvelaunch/curved/internal/domain"
	"github.com/curvelaunch/curved/internal/factory"
)

// FactoryProvider serves pool views straight from an in-process factory.
// It never fails transiently, so quote retries collapse to a single read.
type FactoryProvider struct {
	f *factory.Factory
}

// NewFactoryProvider wraps a factory as a quote provider.
func NewFactoryProvider(f *factory.Factory) *FactoryProvider {
	return &FactoryProvider{f: f}
}

// Pool implements Provider. An unknown token is a validation error, which
// the client treats as permanent.
func (p *FactoryProvider) Pool(_ context.Context, token common.Address) (PoolView, error) {
	const op = "client.Provider"
	pl, ok := p.f.Get(token)
	if !ok {
		return nil, domain.E(domain.KindValidation, op,
			"no pool for token %s", strings.ToLower(token.Hex()))
	}
	return pl, nil
}
