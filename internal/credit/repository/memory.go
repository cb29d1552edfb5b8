package repository

import (
	"context"
	"sync"

	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
)

type memoryStore struct {
	mu       sync.Mutex
	balances map[string]int64
	grants   map[string]creditdomain.Grant
}

func NewMemoryStore() creditdomain.Store {
	return &memoryStore{
		balances: make(map[string]int64),
		grants:   make(map[string]creditdomain.Grant),
	}
}

func (s *memoryStore) Get(_ context.Context, userID string) (int64, error) {
	if err := checkUser(userID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *memoryStore) Set(_ context.Context, userID string, balance int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := checkBalance(balance); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = balance
	return nil
}

func (s *memoryStore) Increment(_ context.Context, userID string, amount int64) (int64, error) {
	if err := checkAmount(userID, amount); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.balances[userID]
	if !fits(current, amount) {
		return current, creditdomain.ErrBalanceOverflow
	}
	s.balances[userID] = current + amount
	return s.balances[userID], nil
}

func (s *memoryStore) ApplyGrant(_ context.Context, grant creditdomain.Grant) (int64, bool, error) {
	if err := checkGrant(grant); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.balances[grant.UserID]
	if _, seen := s.grants[grant.TransactionID]; seen {
		return current, false, nil
	}
	if !fits(current, grant.Amount) {
		return current, false, creditdomain.ErrBalanceOverflow
	}
	s.grants[grant.TransactionID] = grant
	s.balances[grant.UserID] = current + grant.Amount
	return s.balances[grant.UserID], true, nil
}

func (s *memoryStore) Consume(_ context.Context, userID string, amount int64) (int64, error) {
	if err := checkAmount(userID, amount); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.balances[userID]
	if current < amount {
		return current, creditdomain.ErrInsufficientCredits
	}
	s.balances[userID] = current - amount
	return s.balances[userID], nil
}
