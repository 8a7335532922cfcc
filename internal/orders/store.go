package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/idgen"
	"github.com/wonny/tradebook/pkg/logger"
	"github.com/wonny/tradebook/pkg/syncx"
)

// Store owns the order lifecycle and the internal <-> external id mapping.
//
// Every read-modify-write of one order runs under that order's key lock.
// The maps are guarded separately and only hold copies, so readers never
// observe a half-applied change. No lock is held while the gateway is called.
// ⭐ SSOT: 주문 상태 전이는 여기서만
type Store struct {
	mu         sync.RWMutex
	byID       map[int64]contracts.Order
	byExternal map[int64]int64
	open       map[int64]struct{}

	locks     *syncx.KeyedMutex[int64]
	gateway   contracts.ExecutionGateway
	persister contracts.Persister
	ids       *idgen.Generator
	logger    *logger.Logger
	now       func() time.Time
}

// NewStore creates an empty order store
func NewStore(gateway contracts.ExecutionGateway, persister contracts.Persister, ids *idgen.Generator, log *logger.Logger) *Store {
	return &Store{
		byID:       make(map[int64]contracts.Order),
		byExternal: make(map[int64]int64),
		open:       make(map[int64]struct{}),
		locks:      syncx.NewKeyedMutex[int64](),
		gateway:    gateway,
		persister:  persister,
		ids:        ids,
		logger:     log,
		now:        time.Now,
	}
}

func (s *Store) get(id int64) (contracts.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	return o, ok
}

// put stores a copy and keeps the indexes in sync
func (s *Store) put(o contracts.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[o.ID] = o
	if o.ExternalID > 0 {
		s.byExternal[o.ExternalID] = o.ID
	}
	if o.IsClosed() {
		delete(s.open, o.ID)
	} else {
		s.open[o.ID] = struct{}{}
	}
}

// Create validates the order and registers it as placing. No I/O.
func (s *Store) Create(o contracts.Order) (contracts.Order, error) {
	if o.Type == "" {
		o.Type = contracts.OrderTypeMarket
	}
	if o.TimeInForce == "" {
		o.TimeInForce = contracts.TimeInForceGTC
	}
	if err := o.Validate(); err != nil {
		return contracts.Order{}, err
	}

	now := s.now()
	o.ID = s.ids.Next(idgen.KindOrder)
	o.ExternalID = 0
	o.Status = contracts.StatusPlacing
	o.Price = o.RequestedPrice
	o.FilledQuantity = 0
	o.CreateTime = now
	o.UpdateTime = now
	o.ExternalCreateTime = time.Time{}
	o.ExternalUpdateTime = time.Time{}

	s.put(o)
	return o, nil
}

// Send submits a placing order. Failures leave the order failed or rejected
// and are returned wrapped in ErrSendOrderFailed; nothing is retried.
func (s *Store) Send(ctx context.Context, id int64) (contracts.Order, error) {
	unlock := s.locks.Lock(id)
	o, ok := s.get(id)
	if !ok {
		unlock()
		return contracts.Order{}, fmt.Errorf("%w: %d", contracts.ErrOrderNotFound, id)
	}
	if o.Status != contracts.StatusPlacing {
		unlock()
		return o, fmt.Errorf("%w: cannot send order %d in status %s", contracts.ErrIllegalTransition, id, o.Status)
	}

	o.Status = contracts.StatusSubmitting
	o.ExternalID = s.ids.Next(idgen.KindExternalOrder)
	o.UpdateTime = s.now()
	s.put(o)
	s.persister.SaveOrders(o)
	unlock()

	ack, sendErr := s.gateway.SendOrder(ctx, o)

	updated, err := s.Mutate(id, func(cur *contracts.Order) error {
		cur.UpdateTime = s.now()
		if sendErr != nil {
			status := contracts.StatusFailed
			if ack.Status == contracts.StatusRejected {
				status = contracts.StatusRejected
			}
			if contracts.CanTransition(cur.Status, status) {
				cur.Status = status
			}
			cur.Comment = appendComment(cur.Comment, ack.Message)
			return nil
		}

		if ack.ExternalOrderID > 0 && ack.ExternalOrderID != cur.ExternalID {
			s.logger.WithFields(map[string]interface{}{
				"order_id":     cur.ID,
				"external_id":  cur.ExternalID,
				"ack_external": ack.ExternalOrderID,
			}).Warn("Broker acknowledged a different external id, keeping ours")
		}
		// fills may already have moved the order past live
		if cur.Status == contracts.StatusSubmitting {
			cur.Status = contracts.StatusLive
		}
		if !ack.Time.IsZero() {
			cur.ExternalCreateTime = ack.Time
		}
		return nil
	})
	if err != nil {
		return updated, err
	}

	if sendErr != nil {
		s.logger.WithFields(map[string]interface{}{
			"order_id":    id,
			"external_id": updated.ExternalID,
			"status":      updated.Status,
		}).WithError(sendErr).Warn("Send order failed")
		return updated, fmt.Errorf("%w: %v", contracts.ErrSendOrderFailed, sendErr)
	}

	s.logger.WithFields(map[string]interface{}{
		"order_id":    id,
		"external_id": updated.ExternalID,
		"security":    updated.SecurityCode,
		"side":        updated.Side,
		"quantity":    updated.Quantity,
	}).Info("Order sent")
	return updated, nil
}

// Cancel stops future fills of an order. A placing order is cancelled locally;
// a closed order is a no-op; a gateway failure restores the prior status.
func (s *Store) Cancel(ctx context.Context, id int64) (contracts.Order, error) {
	unlock := s.locks.Lock(id)
	o, ok := s.get(id)
	if !ok {
		unlock()
		return contracts.Order{}, fmt.Errorf("%w: %d", contracts.ErrOrderNotFound, id)
	}

	switch {
	case o.IsClosed(), o.Status == contracts.StatusCanceling:
		unlock()
		return o, contracts.ErrNoop
	case o.Status == contracts.StatusWaitingSubmit, o.Status == contracts.StatusSubmitting:
		unlock()
		return o, fmt.Errorf("%w: order %d is not acknowledged yet", contracts.ErrIllegalTransition, id)
	case o.Status == contracts.StatusPlacing:
		o.Status = contracts.StatusCancelled
		o.UpdateTime = s.now()
		s.put(o)
		s.persister.SaveOrders(o)
		unlock()
		return o, nil
	}

	prev := o.Status
	o.Status = contracts.StatusCanceling
	o.UpdateTime = s.now()
	s.put(o)
	unlock()

	ack, cancelErr := s.gateway.CancelOrder(ctx, o)

	updated, err := s.Mutate(id, func(cur *contracts.Order) error {
		cur.UpdateTime = s.now()
		if cancelErr != nil {
			if cur.Status == contracts.StatusCanceling {
				cur.Status = prev
			}
			return nil
		}
		if cur.IsClosed() {
			return nil
		}
		switch {
		case ack.Status.IsTerminal():
			cur.Status = ack.Status
		case cur.FilledQuantity > 0:
			cur.Status = contracts.StatusPartialCancelled
		default:
			cur.Status = contracts.StatusCancelled
		}
		if !ack.Time.IsZero() {
			cur.ExternalUpdateTime = ack.Time
		}
		return nil
	})
	if err != nil {
		return updated, err
	}

	if cancelErr != nil {
		s.logger.WithField("order_id", id).WithError(cancelErr).Warn("Cancel order failed")
		return updated, fmt.Errorf("%w: %v", contracts.ErrCancelOrderFailed, cancelErr)
	}
	return updated, nil
}

// Mutate runs fn on a copy of the order under its key lock, then stores and
// persists the result. If fn returns an error nothing is written.
func (s *Store) Mutate(id int64, fn func(o *contracts.Order) error) (contracts.Order, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	o, ok := s.get(id)
	if !ok {
		return contracts.Order{}, fmt.Errorf("%w: %d", contracts.ErrOrderNotFound, id)
	}

	prev := o.Status
	if err := fn(&o); err != nil {
		return o, err
	}
	if !contracts.CanTransition(prev, o.Status) {
		return o, fmt.Errorf("%w: order %d %s -> %s", contracts.ErrIllegalTransition, id, prev, o.Status)
	}

	s.put(o)
	s.persister.SaveOrders(o)
	return o, nil
}

var errStale = errors.New("stale order state")

// Update merges externally reported order states. Unknown orders carrying an
// external id are adopted; states older than the last seen one are ignored;
// moves out of a terminal state are logged and dropped. Returns how many were applied.
func (s *Store) Update(states ...contracts.Order) int {
	applied := 0
	for _, in := range states {
		if in.ExternalID <= 0 {
			s.logger.WithField("order_id", in.ID).Warn("Order state without external id dropped")
			continue
		}

		id, known := s.idForExternal(in.ExternalID)
		if !known {
			if s.adopt(in) {
				applied++
			}
			continue
		}

		_, err := s.Mutate(id, func(cur *contracts.Order) error {
			return merge(cur, in)
		})
		switch {
		case err == nil:
			applied++
		case errors.Is(err, errStale):
			s.logger.WithFields(map[string]interface{}{
				"order_id":    id,
				"external_id": in.ExternalID,
			}).Debug("Rejected older order state")
		case errors.Is(err, contracts.ErrIllegalTransition):
			s.logger.WithFields(map[string]interface{}{
				"order_id":    id,
				"external_id": in.ExternalID,
				"to":          in.Status,
			}).WithError(err).Warn("Illegal order transition dropped")
		default:
			s.logger.WithField("order_id", id).WithError(err).Warn("Order state not applied")
		}
	}
	return applied
}

func merge(cur *contracts.Order, in contracts.Order) error {
	at := in.ExternalUpdateTime
	if at.IsZero() {
		at = in.UpdateTime
	}
	if !at.IsZero() && at.Before(cur.ExternalUpdateTime) {
		return errStale
	}
	if in.Status != contracts.StatusUnknown && !contracts.CanTransition(cur.Status, in.Status) {
		return fmt.Errorf("%w: %s -> %s", contracts.ErrIllegalTransition, cur.Status, in.Status)
	}

	if in.Status != contracts.StatusUnknown {
		cur.Status = in.Status
	}
	if !at.IsZero() {
		cur.ExternalUpdateTime = at
		cur.UpdateTime = at
	}
	if cur.ExternalCreateTime.IsZero() {
		cur.ExternalCreateTime = in.ExternalCreateTime
	}
	return nil
}

// adopt is serialized per external id; negative keys never collide with internal ids.
func (s *Store) adopt(in contracts.Order) bool {
	unlock := s.locks.Lock(-in.ExternalID)
	defer unlock()

	// another goroutine may have adopted it while we waited
	if _, known := s.idForExternal(in.ExternalID); known {
		return false
	}

	now := s.now()
	in.ID = s.ids.Next(idgen.KindOrder)
	if in.CreateTime.IsZero() {
		in.CreateTime = now
	}
	if in.UpdateTime.IsZero() {
		in.UpdateTime = now
	}
	s.put(in)
	s.persister.SaveOrders(in)

	s.logger.WithFields(map[string]interface{}{
		"order_id":    in.ID,
		"external_id": in.ExternalID,
		"status":      in.Status,
	}).Info("Adopted external order")
	return true
}

func (s *Store) idForExternal(externalID int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalID]
	return id, ok
}

// Load registers persisted orders without persisting them again
func (s *Store) Load(orders []contracts.Order) {
	for _, o := range orders {
		s.put(o)
		s.ids.Observe(idgen.KindOrder, o.ID)
		s.ids.Observe(idgen.KindExternalOrder, o.ExternalID)
	}
}

// Get returns an order by internal id
func (s *Store) Get(id int64) (contracts.Order, bool) {
	return s.get(id)
}

// GetByExternalID returns an order by broker id
func (s *Store) GetByExternalID(externalID int64) (contracts.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return contracts.Order{}, false
	}
	o, ok := s.byID[id]
	return o, ok
}

// Open returns orders not yet in a terminal state
func (s *Store) Open() []contracts.Order {
	s.mu.RLock()
	out := make([]contracts.Order, 0, len(s.open))
	for id := range s.open {
		out = append(out, s.byID[id])
	}
	s.mu.RUnlock()

	slices.SortFunc(out, contracts.CompareOrders)
	return out
}

// List returns every order
func (s *Store) List() []contracts.Order {
	s.mu.RLock()
	out := make([]contracts.Order, 0, len(s.byID))
	for _, o := range s.byID {
		out = append(out, o)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, contracts.CompareOrders)
	return out
}

func appendComment(comment, msg string) string {
	switch {
	case msg == "":
		return comment
	case comment == "":
		return msg
	default:
		return comment + "; " + msg
	}
}
