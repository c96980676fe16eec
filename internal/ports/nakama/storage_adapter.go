package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"vmetrics/internal/domain"
	"vmetrics/internal/ports"
)

const (
	seqKey        = "seq"
	listPageSize  = 100
	appendRetries = 3
)

// StorageModule is the part of runtime.NakamaModule the storage adapter needs.
type StorageModule interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
	StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error
	StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error)
}

// NakamaMatchStore keeps match records as system-owned storage objects.
// Each match gets its own collections so they can be listed without a key scan:
//
//	<prefix>.<match>.rally     key = zero-padded PlayID, plus the "seq" counter
//	<prefix>.<match>.summary   key = set number
//	<prefix>.<match>.roster    key = set number
//	<prefix>.owner             key = match id
type NakamaMatchStore struct {
	nk     StorageModule
	prefix string
}

var _ ports.MatchStore = (*NakamaMatchStore)(nil)

// NewNakamaMatchStore creates a store writing under the given collection prefix.
func NewNakamaMatchStore(nk StorageModule, prefix string) *NakamaMatchStore {
	return &NakamaMatchStore{nk: nk, prefix: prefix}
}

func (s *NakamaMatchStore) collection(matchID, kind string) string {
	return s.prefix + "." + matchID + "." + kind
}

func playKey(playID int64) string {
	return fmt.Sprintf("%020d", playID)
}

func setKey(setNumber int) string {
	return fmt.Sprintf("%03d", setNumber)
}

func systemWrite(collection, key, version string, v any) (*runtime.StorageWrite, error) {
	value, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s/%s: %w", collection, key, err)
	}
	return &runtime.StorageWrite{
		Collection:      collection,
		Key:             key,
		Value:           string(value),
		Version:         version,
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}, nil
}

func (s *NakamaMatchStore) read(ctx context.Context, collection, key string) (*api.StorageObject, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{{Collection: collection, Key: key}})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, key, err)
	}
	if len(objects) == 0 {
		return nil, ports.ErrNotFound
	}
	return objects[0], nil
}

func (s *NakamaMatchStore) list(ctx context.Context, collection string) ([]*api.StorageObject, error) {
	var out []*api.StorageObject
	cursor := ""
	for {
		objects, next, err := s.nk.StorageList(ctx, "", "", collection, listPageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", collection, err)
		}
		out = append(out, objects...)
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

func (s *NakamaMatchStore) listRallies(ctx context.Context, matchID string) ([]domain.RallyRecord, error) {
	objects, err := s.list(ctx, s.collection(matchID, "rally"))
	if err != nil {
		return nil, err
	}
	out := make([]domain.RallyRecord, 0, len(objects))
	for _, obj := range objects {
		if obj.GetKey() == seqKey {
			continue
		}
		var rec domain.RallyRecord
		if err := json.Unmarshal([]byte(obj.GetValue()), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode rally %s: %w", obj.GetKey(), err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayID < out[j].PlayID })
	return out, nil
}

// AppendRally bumps the per-match sequence and writes the record in one storage write.
// A concurrent append makes the sequence version check fail and the append is retried.
func (s *NakamaMatchStore) AppendRally(ctx context.Context, rec domain.RallyRecord) (domain.RallyRecord, error) {
	if rec.MatchID == "" {
		return domain.RallyRecord{}, fmt.Errorf("match id is required")
	}
	collection := s.collection(rec.MatchID, "rally")

	for attempt := 0; attempt < appendRetries; attempt++ {
		var seq int64
		version := "*"
		obj, err := s.read(ctx, collection, seqKey)
		switch {
		case errors.Is(err, ports.ErrNotFound):
		case err != nil:
			return domain.RallyRecord{}, err
		default:
			if err := json.Unmarshal([]byte(obj.GetValue()), &seq); err != nil {
				return domain.RallyRecord{}, fmt.Errorf("failed to decode rally sequence: %w", err)
			}
			version = obj.GetVersion()
		}

		rec.PlayID = seq + 1
		seqWrite, err := systemWrite(collection, seqKey, version, rec.PlayID)
		if err != nil {
			return domain.RallyRecord{}, err
		}
		recWrite, err := systemWrite(collection, playKey(rec.PlayID), "*", rec)
		if err != nil {
			return domain.RallyRecord{}, err
		}

		_, err = s.nk.StorageWrite(ctx, []*runtime.StorageWrite{seqWrite, recWrite})
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			continue
		}
		if err != nil {
			return domain.RallyRecord{}, fmt.Errorf("failed to append rally: %w", err)
		}
		return rec, nil
	}
	return domain.RallyRecord{}, fmt.Errorf("failed to append rally: %w", runtime.ErrStorageRejectedVersion)
}

func (s *NakamaMatchStore) GetRally(ctx context.Context, matchID string, playID int64) (domain.RallyRecord, error) {
	obj, err := s.read(ctx, s.collection(matchID, "rally"), playKey(playID))
	if err != nil {
		return domain.RallyRecord{}, err
	}
	var rec domain.RallyRecord
	if err := json.Unmarshal([]byte(obj.GetValue()), &rec); err != nil {
		return domain.RallyRecord{}, fmt.Errorf("failed to decode rally %d: %w", playID, err)
	}
	return rec, nil
}

// PutRally overwrites an existing record. The version check rejects a record that was deleted meanwhile.
func (s *NakamaMatchStore) PutRally(ctx context.Context, rec domain.RallyRecord) error {
	collection := s.collection(rec.MatchID, "rally")
	obj, err := s.read(ctx, collection, playKey(rec.PlayID))
	if err != nil {
		return err
	}
	write, err := systemWrite(collection, playKey(rec.PlayID), obj.GetVersion(), rec)
	if err != nil {
		return err
	}
	if _, err := s.nk.StorageWrite(ctx, []*runtime.StorageWrite{write}); err != nil {
		return fmt.Errorf("failed to put rally %d: %w", rec.PlayID, err)
	}
	return nil
}

// RestoreRally writes rec unconditionally so undo can bring back a deleted record.
func (s *NakamaMatchStore) RestoreRally(ctx context.Context, rec domain.RallyRecord) error {
	write, err := systemWrite(s.collection(rec.MatchID, "rally"), playKey(rec.PlayID), "", rec)
	if err != nil {
		return err
	}
	if _, err := s.nk.StorageWrite(ctx, []*runtime.StorageWrite{write}); err != nil {
		return fmt.Errorf("failed to restore rally %d: %w", rec.PlayID, err)
	}
	return nil
}

func (s *NakamaMatchStore) DeleteRally(ctx context.Context, matchID string, playID int64) error {
	deletes := []*runtime.StorageDelete{{Collection: s.collection(matchID, "rally"), Key: playKey(playID)}}
	if err := s.nk.StorageDelete(ctx, deletes); err != nil {
		return fmt.Errorf("failed to delete rally %d: %w", playID, err)
	}
	return nil
}

func (s *NakamaMatchStore) DeleteRalliesFrom(ctx context.Context, matchID string, rallyID int) (int, error) {
	removed, err := s.deleteRallies(ctx, matchID, func(rec domain.RallyRecord) bool {
		return rec.RallyID >= rallyID
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete rallies from %d: %w", rallyID, err)
	}
	return removed, nil
}

func (s *NakamaMatchStore) DeleteRalliesAfter(ctx context.Context, matchID string, playID int64) (int, error) {
	removed, err := s.deleteRallies(ctx, matchID, func(rec domain.RallyRecord) bool {
		return rec.PlayID > playID
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete rallies after play %d: %w", playID, err)
	}
	return removed, nil
}

// deleteRallies removes the selected records of a match in a single StorageDelete call.
func (s *NakamaMatchStore) deleteRallies(ctx context.Context, matchID string, match func(domain.RallyRecord) bool) (int, error) {
	rallies, err := s.listRallies(ctx, matchID)
	if err != nil {
		return 0, err
	}
	collection := s.collection(matchID, "rally")
	var deletes []*runtime.StorageDelete
	for _, rec := range rallies {
		if match(rec) {
			deletes = append(deletes, &runtime.StorageDelete{Collection: collection, Key: playKey(rec.PlayID)})
		}
	}
	if len(deletes) == 0 {
		return 0, nil
	}
	if err := s.nk.StorageDelete(ctx, deletes); err != nil {
		return 0, err
	}
	return len(deletes), nil
}

func (s *NakamaMatchStore) LastRally(ctx context.Context, matchID string) (domain.RallyRecord, bool, error) {
	rallies, err := s.listRallies(ctx, matchID)
	if err != nil || len(rallies) == 0 {
		return domain.RallyRecord{}, false, err
	}
	return rallies[len(rallies)-1], true, nil
}

func (s *NakamaMatchStore) ListRallies(ctx context.Context, matchID string, setNumber int) ([]domain.RallyRecord, error) {
	rallies, err := s.listRallies(ctx, matchID)
	if err != nil || setNumber == 0 {
		return rallies, err
	}
	out := rallies[:0]
	for _, rec := range rallies {
		if rec.SetNumber == setNumber {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *NakamaMatchStore) UpsertSetSummary(ctx context.Context, sum domain.SetSummary) error {
	write, err := systemWrite(s.collection(sum.MatchID, "summary"), setKey(sum.SetNumber), "", sum)
	if err != nil {
		return err
	}
	if _, err := s.nk.StorageWrite(ctx, []*runtime.StorageWrite{write}); err != nil {
		return fmt.Errorf("failed to write set %d summary: %w", sum.SetNumber, err)
	}
	return nil
}

func (s *NakamaMatchStore) ListSetSummaries(ctx context.Context, matchID string) ([]domain.SetSummary, error) {
	objects, err := s.list(ctx, s.collection(matchID, "summary"))
	if err != nil {
		return nil, err
	}
	out := make([]domain.SetSummary, 0, len(objects))
	for _, obj := range objects {
		var sum domain.SetSummary
		if err := json.Unmarshal([]byte(obj.GetValue()), &sum); err != nil {
			return nil, fmt.Errorf("failed to decode summary %s: %w", obj.GetKey(), err)
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SetNumber < out[j].SetNumber })
	return out, nil
}

func (s *NakamaMatchStore) DeleteSetSummary(ctx context.Context, matchID string, setNumber int) error {
	collection := s.collection(matchID, "summary")
	if _, err := s.read(ctx, collection, setKey(setNumber)); err != nil {
		return err
	}
	if err := s.nk.StorageDelete(ctx, []*runtime.StorageDelete{{Collection: collection, Key: setKey(setNumber)}}); err != nil {
		return fmt.Errorf("failed to delete set %d summary: %w", setNumber, err)
	}
	return nil
}

func (s *NakamaMatchStore) PutSetRoster(ctx context.Context, matchID string, setNumber int, lineup domain.Lineup) error {
	write, err := systemWrite(s.collection(matchID, "roster"), setKey(setNumber), "", lineup)
	if err != nil {
		return err
	}
	if _, err := s.nk.StorageWrite(ctx, []*runtime.StorageWrite{write}); err != nil {
		return fmt.Errorf("failed to write set %d roster: %w", setNumber, err)
	}
	return nil
}

// MatchOwner records who created a match. Only the owner can claim the scorer seat or read the log.
type MatchOwner struct {
	MatchID   string    `json:"match_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PutOwner registers a new match. An existing owner record is never overwritten.
func (s *NakamaMatchStore) PutOwner(ctx context.Context, owner MatchOwner) error {
	write, err := systemWrite(s.prefix+".owner", owner.MatchID, "*", owner)
	if err != nil {
		return err
	}
	if _, err := s.nk.StorageWrite(ctx, []*runtime.StorageWrite{write}); err != nil {
		return fmt.Errorf("failed to write owner of %s: %w", owner.MatchID, err)
	}
	return nil
}

func (s *NakamaMatchStore) Owner(ctx context.Context, matchID string) (MatchOwner, error) {
	obj, err := s.read(ctx, s.prefix+".owner", matchID)
	if err != nil {
		return MatchOwner{}, err
	}
	var owner MatchOwner
	if err := json.Unmarshal([]byte(obj.GetValue()), &owner); err != nil {
		return MatchOwner{}, fmt.Errorf("failed to decode owner of %s: %w", matchID, err)
	}
	return owner, nil
}
