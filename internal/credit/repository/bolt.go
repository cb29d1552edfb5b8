package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
)

var (
	bucketBalances = []byte("credit_balances")
	bucketGrants   = []byte("credit_grants")
)

type boltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the Bolt file at path with the credit buckets.
func OpenBolt(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBalances, bucketGrants} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}
	return db, nil
}

func NewBoltStore(db *bolt.DB) creditdomain.Store {
	return &boltStore{db: db}
}

func (s *boltStore) Get(_ context.Context, userID string) (int64, error) {
	if err := checkUser(userID); err != nil {
		return 0, err
	}
	var balance int64
	err := s.db.View(func(tx *bolt.Tx) error {
		balance = readBalance(tx, userID)
		return nil
	})
	return balance, err
}

func (s *boltStore) Set(_ context.Context, userID string, balance int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := checkBalance(balance); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return writeBalance(tx, userID, balance)
	})
}

func (s *boltStore) Increment(_ context.Context, userID string, amount int64) (int64, error) {
	if err := checkAmount(userID, amount); err != nil {
		return 0, err
	}
	var balance int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		balance = readBalance(tx, userID)
		if !fits(balance, amount) {
			return creditdomain.ErrBalanceOverflow
		}
		balance += amount
		return writeBalance(tx, userID, balance)
	})
	return balance, err
}

func (s *boltStore) ApplyGrant(_ context.Context, grant creditdomain.Grant) (int64, bool, error) {
	if err := checkGrant(grant); err != nil {
		return 0, false, err
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}

	var (
		balance int64
		applied bool
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		grants := tx.Bucket(bucketGrants)
		key := []byte(grant.TransactionID)
		balance = readBalance(tx, grant.UserID)
		if grants.Get(key) != nil {
			return nil
		}
		if !fits(balance, grant.Amount) {
			return creditdomain.ErrBalanceOverflow
		}
		raw, err := json.Marshal(grant)
		if err != nil {
			return err
		}
		if err := grants.Put(key, raw); err != nil {
			return err
		}
		applied = true
		balance += grant.Amount
		return writeBalance(tx, grant.UserID, balance)
	})
	if err != nil {
		return 0, false, err
	}
	return balance, applied, nil
}

func (s *boltStore) Consume(_ context.Context, userID string, amount int64) (int64, error) {
	if err := checkAmount(userID, amount); err != nil {
		return 0, err
	}
	var balance int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		balance = readBalance(tx, userID)
		if balance < amount {
			return creditdomain.ErrInsufficientCredits
		}
		balance -= amount
		return writeBalance(tx, userID, balance)
	})
	return balance, err
}

func readBalance(tx *bolt.Tx, userID string) int64 {
	raw := tx.Bucket(bucketBalances).Get([]byte(userID))
	if len(raw) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(raw))
}

func writeBalance(tx *bolt.Tx, userID string, balance int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(balance))
	return tx.Bucket(bucketBalances).Put([]byte(userID), buf)
}
