package checkout

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/storefront/storefront/internal/cart"
	"github.com/storefront/storefront/internal/shared"
)

// JourneySuite drives a shopper through two replicas sharing one redis.
type JourneySuite struct {
	suite.Suite
	ctx     context.Context
	mr      *miniredis.Miniredis
	carts   *cart.RedisStorage
	placer  *fakePlacer
	idem    *memoryIdempotency
	replica [2]*Service
}

func (s *JourneySuite) SetupTest() {
	s.ctx = context.Background()
	s.mr = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })

	s.carts = cart.NewRedisStorage(client, 24*time.Hour)
	s.placer = &fakePlacer{}
	s.idem = &memoryIdempotency{keys: map[string]bool{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for i := range s.replica {
		s.replica[i] = NewService(NewRedisStateStore(client, 30*time.Minute), s.carts, s.placer, s.idem, logger)
	}

	store, err := cart.Open(s.ctx, s.carts, "slot")
	s.Require().NoError(err)
	s.Require().NoError(store.Add(s.ctx, product(1, "40")))
	s.Require().NoError(store.Add(s.ctx, product(2, "12.50")))
}

func (s *JourneySuite) TestStepsSurviveReplicaSwitch() {
	_, err := s.replica[0].SetCustomer(s.ctx, "slot", customer())
	s.Require().NoError(err)

	view, err := s.replica[1].View(s.ctx, "slot")
	s.Require().NoError(err)
	s.Equal(StepAddress, view.Step)
	s.Equal("ana@example.com", view.Customer.Email)

	view, err = s.replica[1].SetAddress(s.ctx, "slot", address("us"))
	s.Require().NoError(err)
	s.Equal(StepReview, view.Step)
	s.Equal("52.5", view.Quote.Subtotal.String())

	order, err := s.replica[0].Complete(s.ctx, "slot", nil, "journey-1")
	s.Require().NoError(err)
	s.Len(order.Items, 2)
	s.Require().Len(s.placer.placed, 1)

	_, err = s.replica[1].Complete(s.ctx, "slot", nil, "journey-1")
	s.Error(err, "state and cart are gone after placement")

	store, err := cart.Open(s.ctx, s.carts, "slot")
	s.Require().NoError(err)
	s.True(store.Empty())
}

func (s *JourneySuite) TestReplayedKeyOnOtherReplicaConflicts() {
	for _, svc := range s.replica {
		_, err := svc.SetCustomer(s.ctx, "slot", customer())
		s.Require().NoError(err)
		_, err = svc.SetAddress(s.ctx, "slot", address("ar"))
		s.Require().NoError(err)
	}
	s.idem.keys[IdempotencyModule+"dup"] = true

	_, err := s.replica[1].Complete(s.ctx, "slot", nil, "dup")
	s.ErrorIs(err, shared.ErrIdempotencyConflict)
	s.Empty(s.placer.placed)
}

func (s *JourneySuite) TestAbandonedCheckoutExpires() {
	_, err := s.replica[0].SetCustomer(s.ctx, "slot", customer())
	s.Require().NoError(err)

	s.mr.FastForward(31 * time.Minute)

	view, err := s.replica[1].View(s.ctx, "slot")
	s.Require().NoError(err)
	s.Equal(StepCustomer, view.Step)
	s.Equal(2, view.Cart.Count, "the cart outlives the checkout state")
}

func TestJourneySuite(t *testing.T) {
	suite.Run(t, new(JourneySuite))
}
