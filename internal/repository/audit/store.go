// Package audit persists charge observations per subscription so that
// ChargeMismatch handling can be a policy decision (alerting, review)
// instead of a process crash.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/metergate/internal/domain"
)

const (
	defaultKeyPrefix = "metergate:"
	defaultKeep      = 100
)

// Entry is one recorded reconciliation outcome.
type Entry struct {
	BalanceBefore  int       `json:"balance_before"`
	BalanceAfter   int       `json:"balance_after"`
	ExpectedCharge int       `json:"expected_charge"`
	ObservedCharge int       `json:"observed_charge"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Store keeps a bounded ring of recent entries per subscription in Redis.
type Store struct {
	client rueidis.Client
	prefix string
	keep   int64
	now    func() time.Time
}

// Config holds connection parameters for the audit store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// Keep bounds the number of retained entries per subscription.
	Keep int
}

// NewStore creates an audit store backed by Redis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newStore(client, cfg), nil
}

// NewStoreForTest wraps an existing (mock) client.
func NewStoreForTest(client rueidis.Client) *Store {
	return newStore(client, Config{})
}

func newStore(client rueidis.Client, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	keep := cfg.Keep
	if keep <= 0 {
		keep = defaultKeep
	}
	return &Store{
		client: client,
		prefix: prefix,
		keep:   int64(keep),
		now:    time.Now,
	}
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// Record pushes an observation for the subscription and trims the ring.
func (s *Store) Record(ctx context.Context, subscriptionID string, obs domain.ChargeObservation) error {
	e := Entry{
		BalanceBefore:  obs.BalanceBefore,
		BalanceAfter:   obs.BalanceAfter,
		ExpectedCharge: obs.ExpectedCharge,
		ObservedCharge: obs.ObservedCharge(),
		RecordedAt:     s.now().UTC(),
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit record %s: marshal: %w", subscriptionID, err)
	}

	key := s.key(subscriptionID)
	push := s.client.B().Lpush().Key(key).Element(string(data)).Build()
	if err := s.client.Do(ctx, push).Error(); err != nil {
		return fmt.Errorf("audit record %s: LPUSH: %w", subscriptionID, err)
	}

	trim := s.client.B().Ltrim().Key(key).Start(0).Stop(s.keep - 1).Build()
	if err := s.client.Do(ctx, trim).Error(); err != nil {
		return fmt.Errorf("audit record %s: LTRIM: %w", subscriptionID, err)
	}

	return nil
}

// Recent returns up to n entries for the subscription, newest first.
func (s *Store) Recent(ctx context.Context, subscriptionID string, n int) ([]Entry, error) {
	if n <= 0 {
		n = int(s.keep)
	}

	cmd := s.client.B().Lrange().Key(s.key(subscriptionID)).Start(0).Stop(int64(n - 1)).Build()
	raw, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("audit recent %s: LRANGE: %w", subscriptionID, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("audit recent %s: unmarshal: %w", subscriptionID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) key(subscriptionID string) string {
	return s.prefix + "audit:" + subscriptionID
}
