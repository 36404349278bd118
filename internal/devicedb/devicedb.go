// Package devicedb keeps a persistent history of every device the tracking service reported.
package devicedb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/neuroplastio/psmove-bridge/internal/driver"
	"github.com/neuroplastio/psmove-bridge/pkg/bus"
	"go.uber.org/zap"
)

var ErrDeviceNotFound = errors.New("device not found")

const keyPrefix = "devices/"

type Record struct {
	Identifier   string    `json:"identifier"`
	ServiceID    int       `json:"serviceId"`
	Serial       string    `json:"serial,omitempty"`
	Kind         string    `json:"kind"`
	Class        string    `json:"class,omitempty"`
	ParentSerial string    `json:"parentSerial,omitempty"`
	Active       bool      `json:"active"`
	FirstSeenAt  time.Time `json:"firstSeenAt"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}

type Store struct {
	log *zap.Logger
	db  *badger.DB
	now func() time.Time
}

func New(log *zap.Logger, db *badger.DB, now func() time.Time) *Store {
	return &Store{
		log: log,
		db:  db,
		now: now,
	}
}

func key(identifier string) []byte {
	return []byte(fmt.Sprintf("%s%s", keyPrefix, identifier))
}

// Record merges a device lifecycle event into the stored history of that device.
func (s *Store) Record(ev driver.DeviceEvent) (Record, error) {
	var rec Record
	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		k := key(ev.Device.Identifier)
		item, err := txn.Get(k)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal device: %w", err)
			}
		}
		rec.Identifier = ev.Device.Identifier
		rec.ServiceID = ev.Device.ServiceID
		rec.Kind = ev.Device.Kind.String()
		if ev.Device.Serial != "" {
			rec.Serial = ev.Device.Serial
		}
		if ev.Device.Class != "" {
			rec.Class = ev.Device.Class
		}
		if ev.Device.ParentSerial != "" {
			rec.ParentSerial = ev.Device.ParentSerial
		}
		rec.Active = ev.Type != driver.DeviceDeactivated
		if rec.FirstSeenAt.IsZero() {
			rec.FirstSeenAt = now
		}
		rec.LastSeenAt = now
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal device: %w", err)
		}
		return txn.Set(k, b)
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed to record device: %w", err)
	}
	return rec, nil
}

func (s *Store) Get(identifier string) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(identifier))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDeviceNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed to get device %s: %w", identifier, err)
	}
	return rec, nil
}

// List returns every recorded device ordered by identifier.
func (s *Store) List() ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := []byte(keyPrefix)
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var rec Record
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return records, nil
}

// Run records every event received from sub until ctx is cancelled.
func (s *Store) Run(ctx context.Context, sub bus.Subscriber[driver.DeviceEventType, driver.DeviceEvent]) error {
	events := sub(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-events:
			if _, err := s.Record(msg.Message); err != nil {
				s.log.Error("Failed to record device event", zap.String("device", msg.Message.Device.Identifier), zap.Error(err))
			}
		}
	}
}
