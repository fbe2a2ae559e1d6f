// Package store persists the ledger in a local bolt database.
//
// Everything lives under one top-level bucket so the file can be shared
// with other tools. Transactions and subscriptions are keyed by an
// insertion sequence; listing walks the keys backwards so the newest entry
// comes first.
package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/dvloznov/mintbalance/internal/domain"
)

// SchemaVersion is written to the meta bucket of every new database.
const SchemaVersion = 1

var (
	rootBucket          = []byte("mintbalance")
	metaBucket          = []byte("meta")
	transactionsBucket  = []byte("transactions")
	txIndexBucket       = []byte("tx_index")
	subscriptionsBucket = []byte("subscriptions")
	settingsBucket      = []byte("settings")

	schemaKey   = []byte("schema_version")
	settingsKey = []byte("current")
)

var (
	// ErrNotFound is returned when an ID does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSchema is returned when the database was written by a newer
	// version.
	ErrSchema = errors.New("unsupported schema version")
)

// BoltStore is a Repository backed by a bolt file.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// Option configures a BoltStore.
type Option func(*BoltStore)

// WithClock replaces time.Now for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *BoltStore) { s.now = now }
}

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("Open: create dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("Open: open %s: %w", path, err)
	}

	s := &BoltStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(rootBucket)
		if err != nil {
			return fmt.Errorf("init: create root bucket: %w", err)
		}
		for _, name := range [][]byte{metaBucket, transactionsBucket, txIndexBucket, subscriptionsBucket, settingsBucket} {
			if _, err := root.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("init: create bucket %s: %w", name, err)
			}
		}

		meta := root.Bucket(metaBucket)
		if v := meta.Get(schemaKey); v != nil {
			if got := int(binary.BigEndian.Uint64(v)); got > SchemaVersion {
				return fmt.Errorf("init: database schema %d: %w", got, ErrSchema)
			}
			return nil
		}
		return meta.Put(schemaKey, itob(SchemaVersion))
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func bucket(tx *bolt.Tx, name []byte) *bolt.Bucket {
	return tx.Bucket(rootBucket).Bucket(name)
}

// AddTransaction validates in and stores it as the newest transaction.
func (s *BoltStore) AddTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, err
	}
	t, err := domain.NewTransaction(in, s.now())
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return putTransaction(tx, t)
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("AddTransaction: %w", err)
	}
	return t, nil
}

func putTransaction(tx *bolt.Tx, t domain.Transaction) error {
	b := bucket(tx, transactionsBucket)
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transaction %s: %w", t.ID, err)
	}
	key := itob(seq)
	if err := b.Put(key, data); err != nil {
		return err
	}
	return bucket(tx, txIndexBucket).Put([]byte(t.ID), key)
}

// DeleteTransaction removes the transaction with id.
func (s *BoltStore) DeleteTransaction(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		index := bucket(tx, txIndexBucket)
		key := index.Get([]byte(id))
		if key == nil {
			return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		// Bolt reuses the page memory after the delete.
		key = bytes.Clone(key)
		if err := bucket(tx, transactionsBucket).Delete(key); err != nil {
			return err
		}
		return index.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

// Transactions lists transactions newest-inserted first.
func (s *BoltStore) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = readTransactions(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}
	return out, nil
}

func readTransactions(tx *bolt.Tx) ([]domain.Transaction, error) {
	out := []domain.Transaction{}
	c := bucket(tx, transactionsBucket).Cursor()
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		var t domain.Transaction
		if err := json.Unmarshal(v, &t); err != nil {
			return nil, fmt.Errorf("decode transaction at %d: %w", binary.BigEndian.Uint64(k), err)
		}
		out = append(out, t)
	}
	return out, nil
}

// AddSubscription validates in and stores it as the newest subscription.
func (s *BoltStore) AddSubscription(ctx context.Context, in domain.SubscriptionInput) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return domain.Subscription{}, err
	}
	sub, err := domain.NewSubscription(in, s.now())
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("AddSubscription: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return putSubscription(tx, sub)
	})
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("AddSubscription: %w", err)
	}
	return sub, nil
}

func putSubscription(tx *bolt.Tx, sub domain.Subscription) error {
	b := bucket(tx, subscriptionsBucket)
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription %s: %w", sub.ID, err)
	}
	return b.Put(itob(seq), data)
}

// findSubscription scans for id. Subscription lists are short enough that
// an index is not worth keeping.
func findSubscription(tx *bolt.Tx, id string) ([]byte, domain.Subscription, error) {
	c := bucket(tx, subscriptionsBucket).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var sub domain.Subscription
		if err := json.Unmarshal(v, &sub); err != nil {
			return nil, domain.Subscription{}, fmt.Errorf("decode subscription: %w", err)
		}
		if sub.ID == id {
			return bytes.Clone(k), sub, nil
		}
	}
	return nil, domain.Subscription{}, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
}

// ToggleSubscription flips Active on the subscription with id.
func (s *BoltStore) ToggleSubscription(ctx context.Context, id string) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return domain.Subscription{}, err
	}
	var out domain.Subscription
	err := s.db.Update(func(tx *bolt.Tx) error {
		key, sub, err := findSubscription(tx, id)
		if err != nil {
			return err
		}
		sub.Active = !sub.Active
		sub.UpdatedAt = s.now().UTC()

		data, err := json.Marshal(sub)
		if err != nil {
			return err
		}
		out = sub
		return bucket(tx, subscriptionsBucket).Put(key, data)
	})
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("ToggleSubscription: %w", err)
	}
	return out, nil
}

// DeleteSubscription removes the subscription with id.
func (s *BoltStore) DeleteSubscription(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		key, _, err := findSubscription(tx, id)
		if err != nil {
			return err
		}
		return bucket(tx, subscriptionsBucket).Delete(key)
	})
	if err != nil {
		return fmt.Errorf("DeleteSubscription: %w", err)
	}
	return nil
}

// Subscriptions lists subscriptions newest-inserted first.
func (s *BoltStore) Subscriptions(ctx context.Context) ([]domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Subscription
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = readSubscriptions(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Subscriptions: %w", err)
	}
	return out, nil
}

func readSubscriptions(tx *bolt.Tx) ([]domain.Subscription, error) {
	out := []domain.Subscription{}
	c := bucket(tx, subscriptionsBucket).Cursor()
	for k, v := c.Last(); k != nil; k, v = c.Prev() {
		var sub domain.Subscription
		if err := json.Unmarshal(v, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription at %d: %w", binary.BigEndian.Uint64(k), err)
		}
		out = append(out, sub)
	}
	return out, nil
}

// Settings returns the stored settings, or defaults when none were saved.
func (s *BoltStore) Settings(ctx context.Context) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}
	var out domain.Settings
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = readSettings(tx)
		return err
	})
	if err != nil {
		return domain.Settings{}, fmt.Errorf("Settings: %w", err)
	}
	return out, nil
}

func readSettings(tx *bolt.Tx) (domain.Settings, error) {
	v := bucket(tx, settingsBucket).Get(settingsKey)
	if v == nil {
		return domain.DefaultSettings(), nil
	}
	var st domain.Settings
	if err := json.Unmarshal(v, &st); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return st.Normalize(), nil
}

func writeSettings(tx *bolt.Tx, st domain.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return bucket(tx, settingsBucket).Put(settingsKey, data)
}

// UpdateSettings merges patch into the stored settings. The merged result
// must validate or nothing is written.
func (s *BoltStore) UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}
	var out domain.Settings
	err := s.db.Update(func(tx *bolt.Tx) error {
		current, err := readSettings(tx)
		if err != nil {
			return err
		}
		next := patch.Apply(current, s.now())
		if err := next.Validate(); err != nil {
			return err
		}
		out = next
		return writeSettings(tx, next)
	})
	if err != nil {
		return domain.Settings{}, fmt.Errorf("UpdateSettings: %w", err)
	}
	return out, nil
}

// Snapshot reads the whole ledger in one transaction.
func (s *BoltStore) Snapshot(ctx context.Context) (domain.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return domain.Ledger{}, err
	}
	var l domain.Ledger
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		if l.Transactions, err = readTransactions(tx); err != nil {
			return err
		}
		if l.Subscriptions, err = readSubscriptions(tx); err != nil {
			return err
		}
		l.Settings, err = readSettings(tx)
		return err
	})
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("Snapshot: %w", err)
	}
	return l, nil
}

// ReplaceAll overwrites the parts of the ledger present in r. Entries are
// validated first; given lists are newest first, as Snapshot returns them.
func (s *BoltStore) ReplaceAll(ctx context.Context, r Replacement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, t := range r.Transactions {
		if t.ID == "" {
			return fmt.Errorf("ReplaceAll: transaction without id: %w", domain.ErrInvalid)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("ReplaceAll: transaction %s: %w", t.ID, err)
		}
	}
	for _, sub := range r.Subscriptions {
		if sub.ID == "" {
			return fmt.Errorf("ReplaceAll: subscription without id: %w", domain.ErrInvalid)
		}
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("ReplaceAll: subscription %s: %w", sub.ID, err)
		}
	}
	var settings domain.Settings
	if r.Settings != nil {
		settings = r.Settings.Normalize()
		if err := settings.Validate(); err != nil {
			return fmt.Errorf("ReplaceAll: settings: %w", err)
		}
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		if r.Transactions != nil {
			if err := resetBuckets(root, transactionsBucket, txIndexBucket); err != nil {
				return err
			}
			for i := len(r.Transactions) - 1; i >= 0; i-- {
				if err := putTransaction(tx, r.Transactions[i]); err != nil {
					return err
				}
			}
		}
		if r.Subscriptions != nil {
			if err := resetBuckets(root, subscriptionsBucket); err != nil {
				return err
			}
			for i := len(r.Subscriptions) - 1; i >= 0; i-- {
				if err := putSubscription(tx, r.Subscriptions[i]); err != nil {
					return err
				}
			}
		}
		if r.Settings != nil {
			return writeSettings(tx, settings)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ReplaceAll: %w", err)
	}
	return nil
}

// ClearAll deletes every transaction and subscription and resets settings
// to defaults.
func (s *BoltStore) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return resetBuckets(tx.Bucket(rootBucket), transactionsBucket, txIndexBucket, subscriptionsBucket, settingsBucket)
	})
	if err != nil {
		return fmt.Errorf("ClearAll: %w", err)
	}
	return nil
}

func resetBuckets(root *bolt.Bucket, names ...[]byte) error {
	for _, name := range names {
		if err := root.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("drop bucket %s: %w", name, err)
		}
		if _, err := root.CreateBucket(name); err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return nil
}
