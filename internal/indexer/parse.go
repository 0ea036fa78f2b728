package indexer

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"treasurySync/internal/model"
)

var treasuryAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// ParseRequest validates a sync request and resolves its treasury reference.
// It performs no I/O.
func ParseRequest(req model.SyncRequest) (model.TreasuryRef, error) {
	address := strings.TrimSpace(req.TreasuryAddress)
	id := strings.TrimSpace(req.TreasuryID)
	if address == "" || id == "" {
		return model.TreasuryRef{}, invalidArgument("treasuryAddress and treasuryId are required")
	}
	if !treasuryAddressPattern.MatchString(address) {
		return model.TreasuryRef{}, invalidArgument("Invalid treasury address format")
	}
	return model.TreasuryRef{ID: id, Address: common.HexToAddress(address)}, nil
}
