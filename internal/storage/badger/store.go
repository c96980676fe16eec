package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"vmetrics/internal/domain"
	"vmetrics/internal/ports"
)

// MatchStore keeps every record of a match under a per-match key prefix:
//
//	match/<id>/rally/<play id>    rally records, zero-padded so keys sort by PlayID
//	match/<id>/summary/<set>      set summaries
//	match/<id>/roster/<set>       set lineups
type MatchStore struct {
	db *DB
}

var _ ports.MatchStore = (*MatchStore)(nil)

var errMissingMatchID = errors.New("match id is required")

func NewMatchStore(db *DB) *MatchStore {
	return &MatchStore{db: db}
}

func rallyPrefix(matchID string) []byte {
	return []byte("match/" + matchID + "/rally/")
}

func rallyKey(matchID string, playID int64) []byte {
	return fmt.Appendf(nil, "match/%s/rally/%020d", matchID, playID)
}

func summaryPrefix(matchID string) []byte {
	return []byte("match/" + matchID + "/summary/")
}

func summaryKey(matchID string, setNumber int) []byte {
	return fmt.Appendf(nil, "match/%s/summary/%03d", matchID, setNumber)
}

func rosterKey(matchID string, setNumber int) []byte {
	return fmt.Appendf(nil, "match/%s/roster/%03d", matchID, setNumber)
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// scan visits the items under prefix until fn returns false.
func scan(txn *badger.Txn, prefix []byte, reverse bool, fn func(item *badger.Item) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = reverse
	it := txn.NewIterator(opts)
	defer it.Close()

	start := prefix
	if reverse {
		start = append(append([]byte(nil), prefix...), 0xFF)
	}
	for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
		more, err := fn(it.Item())
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func decodeRally(item *badger.Item) (domain.RallyRecord, error) {
	var rec domain.RallyRecord
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return domain.RallyRecord{}, fmt.Errorf("failed to decode rally %s: %w", item.Key(), err)
	}
	return rec, nil
}

func lastRally(txn *badger.Txn, matchID string) (domain.RallyRecord, bool, error) {
	var last domain.RallyRecord
	found := false
	err := scan(txn, rallyPrefix(matchID), true, func(item *badger.Item) (bool, error) {
		rec, err := decodeRally(item)
		if err != nil {
			return false, err
		}
		last, found = rec, true
		return false, nil
	})
	return last, found, err
}

func (s *MatchStore) AppendRally(ctx context.Context, rec domain.RallyRecord) (domain.RallyRecord, error) {
	if rec.MatchID == "" {
		return domain.RallyRecord{}, errMissingMatchID
	}
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		last, found, err := lastRally(txn, rec.MatchID)
		if err != nil {
			return err
		}
		rec.PlayID = 1
		if found {
			rec.PlayID = last.PlayID + 1
		}
		return putJSON(txn, rallyKey(rec.MatchID, rec.PlayID), rec)
	})
	if err != nil {
		return domain.RallyRecord{}, fmt.Errorf("failed to append rally: %w", err)
	}
	return rec, nil
}

func (s *MatchStore) GetRally(ctx context.Context, matchID string, playID int64) (domain.RallyRecord, error) {
	var rec domain.RallyRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, rallyKey(matchID, playID), &rec)
	})
	return rec, err
}

func (s *MatchStore) PutRally(ctx context.Context, rec domain.RallyRecord) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		key := rallyKey(rec.MatchID, rec.PlayID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ports.ErrNotFound
		} else if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		return putJSON(txn, key, rec)
	})
}

func (s *MatchStore) RestoreRally(ctx context.Context, rec domain.RallyRecord) error {
	if rec.MatchID == "" {
		return errMissingMatchID
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return putJSON(txn, rallyKey(rec.MatchID, rec.PlayID), rec)
	})
}

func (s *MatchStore) DeleteRally(ctx context.Context, matchID string, playID int64) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(rallyKey(matchID, playID))
	})
}

func (s *MatchStore) DeleteRalliesFrom(ctx context.Context, matchID string, rallyID int) (int, error) {
	removed, err := s.deleteRallies(ctx, matchID, func(rec domain.RallyRecord) bool {
		return rec.RallyID >= rallyID
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete rallies from %d: %w", rallyID, err)
	}
	return removed, nil
}

func (s *MatchStore) DeleteRalliesAfter(ctx context.Context, matchID string, playID int64) (int, error) {
	removed, err := s.deleteRallies(ctx, matchID, func(rec domain.RallyRecord) bool {
		return rec.PlayID > playID
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete rallies after play %d: %w", playID, err)
	}
	return removed, nil
}

// deleteRallies removes every record of a match that match selects, in one transaction.
func (s *MatchStore) deleteRallies(ctx context.Context, matchID string, match func(domain.RallyRecord) bool) (int, error) {
	removed := 0
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		var keys [][]byte
		err := scan(txn, rallyPrefix(matchID), false, func(item *badger.Item) (bool, error) {
			rec, err := decodeRally(item)
			if err != nil {
				return false, err
			}
			if match(rec) {
				keys = append(keys, item.KeyCopy(nil))
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	return removed, err
}

func (s *MatchStore) LastRally(ctx context.Context, matchID string) (domain.RallyRecord, bool, error) {
	var last domain.RallyRecord
	var found bool
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		last, found, err = lastRally(txn, matchID)
		return err
	})
	return last, found, err
}

func (s *MatchStore) ListRallies(ctx context.Context, matchID string, setNumber int) ([]domain.RallyRecord, error) {
	var out []domain.RallyRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return scan(txn, rallyPrefix(matchID), false, func(item *badger.Item) (bool, error) {
			rec, err := decodeRally(item)
			if err != nil {
				return false, err
			}
			if setNumber == 0 || rec.SetNumber == setNumber {
				out = append(out, rec)
			}
			return true, nil
		})
	})
	return out, err
}

func (s *MatchStore) UpsertSetSummary(ctx context.Context, sum domain.SetSummary) error {
	if sum.MatchID == "" {
		return errMissingMatchID
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return putJSON(txn, summaryKey(sum.MatchID, sum.SetNumber), sum)
	})
}

func (s *MatchStore) ListSetSummaries(ctx context.Context, matchID string) ([]domain.SetSummary, error) {
	var out []domain.SetSummary
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return scan(txn, summaryPrefix(matchID), false, func(item *badger.Item) (bool, error) {
			var sum domain.SetSummary
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &sum) }); err != nil {
				return false, fmt.Errorf("failed to decode summary %s: %w", item.Key(), err)
			}
			out = append(out, sum)
			return true, nil
		})
	})
	return out, err
}

func (s *MatchStore) DeleteSetSummary(ctx context.Context, matchID string, setNumber int) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		key := summaryKey(matchID, setNumber)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ports.ErrNotFound
		} else if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		return txn.Delete(key)
	})
}

func (s *MatchStore) PutSetRoster(ctx context.Context, matchID string, setNumber int, lineup domain.Lineup) error {
	if matchID == "" {
		return errMissingMatchID
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return putJSON(txn, rosterKey(matchID, setNumber), lineup)
	})
}

// SetRoster returns the lineup stored for a set.
func (s *MatchStore) SetRoster(ctx context.Context, matchID string, setNumber int) (domain.Lineup, error) {
	var lineup domain.Lineup
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, rosterKey(matchID, setNumber), &lineup)
	})
	return lineup, err
}
