package ports

import (
	"context"
	"errors"

	"vmetrics/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// MatchStore persists rally records, set summaries and set rosters for matches.
type MatchStore interface {
	// AppendRally stores a new record and returns it with its assigned PlayID.
	AppendRally(ctx context.Context, rec domain.RallyRecord) (domain.RallyRecord, error)

	// GetRally returns a single record by PlayID.
	GetRally(ctx context.Context, matchID string, playID int64) (domain.RallyRecord, error)

	// PutRally overwrites an existing record. Used by the correction flow.
	PutRally(ctx context.Context, rec domain.RallyRecord) error

	// RestoreRally writes rec at its PlayID whether or not the record still exists. Used by undo.
	RestoreRally(ctx context.Context, rec domain.RallyRecord) error

	// DeleteRally removes a single record.
	DeleteRally(ctx context.Context, matchID string, playID int64) error

	// DeleteRalliesFrom removes every record with RallyID >= rallyID and returns how many were removed.
	DeleteRalliesFrom(ctx context.Context, matchID string, rallyID int) (int, error)

	// DeleteRalliesAfter removes every record with PlayID > playID and returns how many were removed.
	DeleteRalliesAfter(ctx context.Context, matchID string, playID int64) (int, error)

	// LastRally returns the record with the highest PlayID, if any.
	LastRally(ctx context.Context, matchID string) (domain.RallyRecord, bool, error)

	// ListRallies returns a set's records in PlayID order. Set 0 lists the whole match.
	ListRallies(ctx context.Context, matchID string, setNumber int) ([]domain.RallyRecord, error)

	// UpsertSetSummary creates or replaces the summary of one set.
	UpsertSetSummary(ctx context.Context, sum domain.SetSummary) error

	// ListSetSummaries returns every summary of a match in set order.
	ListSetSummaries(ctx context.Context, matchID string) ([]domain.SetSummary, error)

	// DeleteSetSummary removes the summary of one set.
	DeleteSetSummary(ctx context.Context, matchID string, setNumber int) error

	// PutSetRoster stores the lineup used for a set.
	PutSetRoster(ctx context.Context, matchID string, setNumber int, lineup domain.Lineup) error
}
