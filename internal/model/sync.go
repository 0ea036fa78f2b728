package model

// SyncRequest is the invocation payload for a single treasury sync.
type SyncRequest struct {
	TreasuryAddress string  `json:"treasuryAddress"`
	TreasuryID      string  `json:"treasuryId"`
	FromBlock       *uint64 `json:"fromBlock,omitempty"`
	RPCURL          string  `json:"rpcUrl,omitempty"`
}

// SyncedEvent is a newly stored event as reported to the caller.
type SyncedEvent struct {
	EventType   EventType `json:"event_type"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	Amount      string    `json:"amount"`
	PeriodIndex *int64    `json:"period_index"`
}

// SyncResult is the success response of a sync run.
type SyncResult struct {
	Success         bool          `json:"success"`
	SyncedFrom      uint64        `json:"syncedFrom"`
	SyncedTo        uint64        `json:"syncedTo"`
	EventsProcessed int           `json:"eventsProcessed"`
	Events          []SyncedEvent `json:"events"`
	DecodeSkipped   int           `json:"decodeSkipped"`
}

// SyncFailure is the failure response of a sync run.
type SyncFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code"`
}

// NewSyncedEvent converts a stored row into its response form.
func NewSyncedEvent(tx StoredTransaction) SyncedEvent {
	return SyncedEvent{
		EventType:   tx.EventType,
		TxHash:      tx.TxHash,
		BlockNumber: tx.BlockNumber,
		FromAddress: tx.FromAddress,
		ToAddress:   tx.ToAddress,
		Amount:      tx.Amount,
		PeriodIndex: tx.PeriodIndex,
	}
}
