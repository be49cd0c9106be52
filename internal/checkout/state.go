package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefront/storefront/internal/orders"
	"github.com/storefront/storefront/internal/platform/cache"
	"github.com/storefront/storefront/internal/platform/httpx"
)

// Step is a checkout stage.
type Step string

const (
	StepCustomer Step = "customer"
	StepAddress  Step = "address"
	StepReview   Step = "review"
)

var ErrWrongStep = fmt.Errorf("%w: checkout step not reached", httpx.ErrConflict)

// Previous returns the step before s; the first step maps to itself.
func (s Step) Previous() Step {
	switch s {
	case StepReview:
		return StepAddress
	default:
		return StepCustomer
	}
}

// Index is the 1-based position of s.
func (s Step) Index() int {
	switch s {
	case StepAddress:
		return 2
	case StepReview:
		return 3
	default:
		return 1
	}
}

// State is the checkout progress of one shopper.
type State struct {
	Step     Step                   `json:"step"`
	Customer orders.Customer        `json:"customer"`
	Address  orders.ShippingAddress `json:"shipping_address"`
}

// NewState starts at the customer step.
func NewState() State {
	return State{Step: StepCustomer}
}

// StateStore persists checkout state per slot.
type StateStore interface {
	Load(ctx context.Context, slot string) (State, error)
	Save(ctx context.Context, slot string, st State) error
	Delete(ctx context.Context, slot string) error
}

// RedisStateStore keeps checkout state as JSON in redis.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore constructs the store; state expires after ttl.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func stateKey(slot string) string {
	return cache.Key("checkout", slot)
}

// Load returns the stored state or a fresh one.
func (s *RedisStateStore) Load(ctx context.Context, slot string) (State, error) {
	raw, err := s.client.Get(ctx, stateKey(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewState(), nil
	}
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil || st.Step == "" {
		return NewState(), nil
	}
	return st, nil
}

// Save overwrites the slot.
func (s *RedisStateStore) Save(ctx context.Context, slot string, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stateKey(slot), raw, s.ttl).Err()
}

// Delete drops the slot.
func (s *RedisStateStore) Delete(ctx context.Context, slot string) error {
	return s.client.Del(ctx, stateKey(slot)).Err()
}

var _ StateStore = (*RedisStateStore)(nil)
