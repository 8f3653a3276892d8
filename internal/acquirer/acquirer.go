// Package acquirer defines the contract every external PIX/card acquirer
// adapter must satisfy, plus the registry that resolves adapters by name.
// The adapters themselves (Treeal, Pagar.me, Woovi, ...) live outside this
// core; it only consumes their normalized results.
package acquirer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/brgate/pix-gateway/internal/domain"
)

// Known acquirer names. The registry accepts any name, but the status mapper
// only carries tables for these.
const (
	Treeal    = "treeal"
	Pagarme   = "pagarme"
	Woovi     = "woovi"
	Asaas     = "asaas"
	PrimePay7 = "primepay7"
	BSPay     = "bspay"
	XDPag     = "xdpag"
	Pixup     = "pixup"
)

type ChargeRequest struct {
	AmountCents   int64
	Description   string
	ExpirySeconds int
}

type ChargeResult struct {
	ExternalID string
	QRPayload  string
}

type WithdrawalRequest struct {
	AmountCents    int64
	PixKeyValue    string
	PixKeyType     string
	IdempotencyKey string
	Description    string
}

type WithdrawalResult struct {
	ExternalID string
	RawStatus  string
}

// Client is the capability every adapter exposes. Implementations must honor
// the context deadline; the gateway never mutates local state until a call
// succeeds.
type Client interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	CreateWithdrawal(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error)
	GetStatus(ctx context.Context, externalID string) (string, error)
}

// Registry holds the adapters configured at startup, keyed by acquirer name.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	return r
}

func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

func (r *Registry) Resolve(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("Resolve: %q: %w", name, domain.ErrUnknownAcquirer)
	}
	return c, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
