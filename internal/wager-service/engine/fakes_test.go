package engine

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

type payoutCall struct {
	User, Asset common.Address
	Profit, Fee *big.Int
}

type fakeBank struct {
	mu        sync.Mutex
	allowed   map[common.Address]bool
	maxBet    *big.Int
	payoutErr error
	cashInErr error
	payouts   []payoutCall
	cashIns   []*big.Int
}

func (b *fakeBank) IsAllowedToken(_ context.Context, asset common.Address) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowed[asset], nil
}

func (b *fakeBank) GetMaxBetAmount(context.Context, common.Address, uint32) (*big.Int, error) {
	return new(big.Int).Set(b.maxBet), nil
}

func (b *fakeBank) Payout(_ context.Context, user, asset common.Address, profit, fee *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.payoutErr != nil {
		return b.payoutErr
	}
	b.payouts = append(b.payouts, payoutCall{user, asset, profit, fee})
	return nil
}

func (b *fakeBank) CashIn(_ context.Context, _ common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cashInErr != nil {
		return b.cashInErr
	}
	b.cashIns = append(b.cashIns, amount)
	return nil
}

type fakeReferral struct {
	mu        sync.Mutex
	referrers map[common.Address]common.Address
	activity  map[common.Address]int
	err       error
}

func newFakeReferral() *fakeReferral {
	return &fakeReferral{referrers: map[common.Address]common.Address{}, activity: map[common.Address]int{}}
}

func (r *fakeReferral) HasReferrer(_ context.Context, user common.Address) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.referrers[user]
	return ok, nil
}

func (r *fakeReferral) AddReferrer(_ context.Context, user, referrer common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.referrers[user] = referrer
	return nil
}

func (r *fakeReferral) UpdateReferrerActivity(_ context.Context, user common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity[user]++
	return nil
}

type fakeOracle struct {
	mu       sync.Mutex
	next     uint64
	err      error
	requests []events.RandomnessRequested
	hook     func(ctx context.Context)
}

func (o *fakeOracle) RequestRandomness(ctx context.Context, req events.RandomnessRequested) (uint64, error) {
	if o.hook != nil {
		o.hook(ctx)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return 0, o.err
	}
	o.next++
	req.RequestID = o.next
	o.requests = append(o.requests, req)
	return o.next, nil
}

type fakeEstimator struct {
	cost *big.Int
	err  error
}

func (f *fakeEstimator) Estimate(context.Context) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.cost), nil
}

type fakeBlocks struct {
	mu    sync.Mutex
	block uint64
}

func (f *fakeBlocks) CurrentBlock(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block, nil
}

func (f *fakeBlocks) set(n uint64) {
	f.mu.Lock()
	f.block = n
	f.mu.Unlock()
}

type fakePublisher struct {
	mu       sync.Mutex
	placed   []events.WagerPlaced
	settled  []events.WagerSettled
	failures []events.SettlementFailure
}

func (p *fakePublisher) PublishWagerPlaced(_ context.Context, e events.WagerPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return nil
}

func (p *fakePublisher) PublishWagerSettled(_ context.Context, e events.WagerSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, e)
	return nil
}

func (p *fakePublisher) PublishSettlementFailure(_ context.Context, e events.SettlementFailure) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, e)
	return nil
}

func (p *fakePublisher) failureKinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.failures))
	for _, f := range p.failures {
		out = append(out, f.Kind)
	}
	return out
}

var errBoom = errors.New("boom")
