package treasury

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"treasurySync/internal/model"
)

var (
	// ErrUnknownTopic is returned for logs whose topic0 is not a treasury event.
	ErrUnknownTopic = errors.New("unknown topic0")
	// ErrMissingTopics is returned for anonymous logs.
	ErrMissingTopics = errors.New("missing topics")
)

// Decoder turns raw treasury logs into model.DomainEvent values.
type Decoder struct {
	spend     abi.Event
	migration abi.Event
}

// NewDecoder builds a Decoder and checks the ABI against the signature constants.
func NewDecoder() (*Decoder, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse treasury abi: %w", err)
	}

	spend, ok := parsed.Events["Spend"]
	if !ok {
		return nil, fmt.Errorf("treasury abi: missing Spend event")
	}
	migration, ok := parsed.Events["Migration"]
	if !ok {
		return nil, fmt.Errorf("treasury abi: missing Migration event")
	}
	if spend.ID != SpendTopic {
		return nil, fmt.Errorf("treasury abi: Spend id %s != %s", spend.ID.Hex(), SpendTopic.Hex())
	}
	if migration.ID != MigrationTopic {
		return nil, fmt.Errorf("treasury abi: Migration id %s != %s", migration.ID.Hex(), MigrationTopic.Hex())
	}

	return &Decoder{spend: spend, migration: migration}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	return topic0 == SpendTopic || topic0 == MigrationTopic
}

// Decode classifies a log by topic0 and decodes it into its event variant.
func (d *Decoder) Decode(log types.Log) (model.DomainEvent, error) {
	if len(log.Topics) == 0 {
		return nil, ErrMissingTopics
	}

	meta := model.EventMeta{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}

	switch log.Topics[0] {
	case SpendTopic:
		return d.decodeSpend(log, meta)
	case MigrationTopic:
		return d.decodeMigration(log, meta)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, log.Topics[0].Hex())
	}
}

type transferTopics struct {
	Operator common.Address
	To       common.Address
}

func (d *Decoder) decodeSpend(log types.Log, meta model.EventMeta) (*model.SpendEvent, error) {
	indexed, err := parseTransferTopics(d.spend, log.Topics)
	if err != nil {
		return nil, err
	}

	values, err := unpackWords(d.spend, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected spend values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	period, err := periodIndex(values[1])
	if err != nil {
		return nil, err
	}

	return &model.SpendEvent{
		EventMeta:   meta,
		Operator:    indexed.Operator,
		To:          indexed.To,
		Amount:      amount,
		PeriodIndex: period,
	}, nil
}

func (d *Decoder) decodeMigration(log types.Log, meta model.EventMeta) (*model.MigrationEvent, error) {
	indexed, err := parseTransferTopics(d.migration, log.Topics)
	if err != nil {
		return nil, err
	}

	values, err := unpackWords(d.migration, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected migration values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	period, err := periodIndex(values[1])
	if err != nil {
		return nil, err
	}
	remaining, err := asBigInt(values[2])
	if err != nil {
		return nil, fmt.Errorf("remaining balance: %w", err)
	}

	return &model.MigrationEvent{
		EventMeta:        meta,
		Operator:         indexed.Operator,
		To:               indexed.To,
		Amount:           amount,
		PeriodIndex:      period,
		RemainingBalance: remaining,
	}, nil
}

func parseTransferTopics(event abi.Event, topics []common.Hash) (transferTopics, error) {
	args := indexedArguments(event.Inputs)
	if len(topics) != len(args)+1 {
		return transferTopics{}, fmt.Errorf("expected %d topics, got %d", len(args)+1, len(topics))
	}

	var out transferTopics
	if err := abi.ParseTopics(&out, args, topics[1:]); err != nil {
		return transferTopics{}, fmt.Errorf("parse topics: %w", err)
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

// unpackWords decodes a payload of static 32-byte words. Trailing bytes are rejected.
func unpackWords(event abi.Event, data []byte) ([]interface{}, error) {
	nonIndexed := event.Inputs.NonIndexed()
	if want := 32 * len(nonIndexed); len(data) != want {
		return nil, fmt.Errorf("%s data length %d, want %d", event.Name, len(data), want)
	}
	values, err := nonIndexed.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func periodIndex(value interface{}) (*big.Int, error) {
	period, err := asBigInt(value)
	if err != nil {
		return nil, fmt.Errorf("period index: %w", err)
	}
	if !period.IsInt64() {
		return nil, fmt.Errorf("period index overflow: %s", period.String())
	}
	return period, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
