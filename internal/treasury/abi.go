package treasury

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Canonical event signatures of the policy treasury contract. Topic hashes are derived from
// these, so a contract upgrade that changes an event must bump both the ABI and the signature.
const (
	SpendSignature     = "Spend(address,address,uint256,uint256)"
	MigrationSignature = "Migration(address,address,uint256,uint256,uint256)"
)

var (
	SpendTopic     = crypto.Keccak256Hash([]byte(SpendSignature))
	MigrationTopic = crypto.Keccak256Hash([]byte(MigrationSignature))
)

const treasuryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "periodIndex", "type": "uint256"}
    ],
    "name": "Spend",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "periodIndex", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "remainingBalance", "type": "uint256"}
    ],
    "name": "Migration",
    "type": "event"
  }
]`

var (
	treasuryABI     abi.ABI
	treasuryABIOnce sync.Once
	treasuryABIErr  error
)

// ABI returns the parsed treasury event ABI.
func ABI() (abi.ABI, error) {
	treasuryABIOnce.Do(func() {
		treasuryABI, treasuryABIErr = abi.JSON(strings.NewReader(treasuryABIJSON))
	})
	return treasuryABI, treasuryABIErr
}

// Topics returns the topic0 filter for every event the decoder understands.
func Topics() []common.Hash {
	return []common.Hash{SpendTopic, MigrationTopic}
}
