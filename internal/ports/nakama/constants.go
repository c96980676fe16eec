package nakama

const (
	RpcCreateMatch = "vmetrics_create_match"
	RpcResumeMatch = "vmetrics_resume_match"
	RpcScorerToken = "vmetrics_scorer_token"
	RpcRallyLog    = "vmetrics_rally_log"

	// MatchNameVMetrics is the authoritative match handler name registered with Nakama.
	MatchNameVMetrics = "vmetrics_match"

	// MetadataScorerToken is the join metadata key carrying a scorer token.
	MetadataScorerToken = "scorer_token"
)

// Op codes for client messages and server events. Payloads are JSON.
const (
	// Client -> Server, scorer only
	OpStartMatch       int64 = 1
	OpStartSet         int64 = 2
	OpRecordRally      int64 = 3
	OpEditRally        int64 = 4
	OpDeleteRally      int64 = 5
	OpUndo             int64 = 6
	OpCorrectLastRally int64 = 7
	OpFinishSet        int64 = 8
	OpNextSet          int64 = 9
	OpDiscardSet       int64 = 10
	OpLiberoIn         int64 = 11
	OpLiberoOut        int64 = 12
	OpSwapLibero       int64 = 13
	OpSubstitute       int64 = 14
	OpDesignateSetter  int64 = 15
	OpAdjustScore      int64 = 16
	OpToggleServe      int64 = 17

	// Server -> Client events
	OpStateSnapshot int64 = 100
	OpRallyRecorded int64 = 101
	OpRallyChanged  int64 = 102
	OpNotice        int64 = 103
	OpSetEnded      int64 = 104
	OpMatchEnded    int64 = 105
	OpError         int64 = 106 // send privately
	OpCorrection    int64 = 107 // send privately
)

// Error codes carried by OpError.
const (
	ErrCodeBadRequest = 400
	ErrCodeForbidden  = 403
	ErrCodeInternal   = 500
)
