// Copyright 2025 The Fidelio Authors
// This file is part of Fidelio, a behavioral verification engine for
// smart contracts.
//
// Fidelio is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Fidelio is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Fidelio. If not, see <http://www.gnu.org/licenses/>.

package trace

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fidelio-tools/fidelio/logger"
	"github.com/fidelio-tools/fidelio/schema"
	"github.com/fidelio-tools/fidelio/state"
	"github.com/syndtr/goleveldb/leveldb"
)

// Store is a persistent trace repository on top of LevelDB, letting an
// execution driver hand complete traces to the engine out-of-process.
// Records are JSON-encoded and keyed by big-endian sequence number, so
// the database iterates in trace order. A Store is itself a Provider
// and can be loaded straight into an in-memory Repository.
type Store struct {
	db  *leveldb.DB
	reg *schema.Registry
	log logger.Logger
}

// OpenStore opens (or creates) a trace database at the given path. The
// registry re-anchors loaded values under their declared field types.
func OpenStore(path string, reg *schema.Registry) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot open trace database %v; %w", path, err)
	}
	return &Store{
		db:  db,
		reg: reg,
		log: logger.NewLogger("info", "trace-store"),
	}, nil
}

// Put persists one transaction.
func (s *Store) Put(tx *Transaction) error {
	record, err := encodeTransaction(tx)
	if err != nil {
		return fmt.Errorf("cannot encode transaction #%d; %w", tx.Seq, err)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cannot encode transaction #%d; %w", tx.Seq, err)
	}
	return s.db.Put(seqKey(tx.Seq), data, nil)
}

// Run delivers the stored transactions in the range [from, to) to the
// consumer in sequence order, implementing the Provider interface.
func (s *Store) Run(from, to int, consume Consumer) error {
	if from < 0 {
		from = 0
	}
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	for ok := iter.Seek(seqKey(uint64(from))); ok; ok = iter.Next() {
		seq := binary.BigEndian.Uint64(iter.Key())
		if to >= 0 && seq >= uint64(to) {
			break
		}

		var record txRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return fmt.Errorf("cannot decode transaction #%d; %w", seq, err)
		}
		tx, err := record.decode(s.reg)
		if err != nil {
			return fmt.Errorf("cannot decode transaction #%d; %w", seq, err)
		}
		if err := consume(TxInfo{Seq: tx.Seq, Transaction: tx}); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close releases the underlying database.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Errorf("cannot close trace database; %v", err)
	}
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// ----------------------------------------------------------------------------
//                               Wire format
// ----------------------------------------------------------------------------

type txRecord struct {
	Seq      uint64          `json:"seq"`
	Sender   string          `json:"sender"`
	Value    string          `json:"value"`
	Contract string          `json:"contract"`
	Function string          `json:"function"`
	Args     []schema.Value  `json:"args,omitempty"`
	Outcome  string          `json:"outcome"`
	Pre      snapshotRecord  `json:"pre"`
	Post     *snapshotRecord `json:"post,omitempty"`
}

type snapshotRecord struct {
	Balances map[string]string `json:"balances,omitempty"`
	Fields   []fieldRecord     `json:"fields,omitempty"`
}

type fieldRecord struct {
	Contract string       `json:"contract"`
	Field    string       `json:"field"`
	Value    schema.Value `json:"value"`
}

func encodeTransaction(tx *Transaction) (txRecord, error) {
	record := txRecord{
		Seq:      tx.Seq,
		Sender:   tx.Call.Sender.Hex(),
		Value:    tx.Call.Value.String(),
		Contract: tx.Call.Contract,
		Function: tx.Call.Function,
		Args:     tx.Call.Args,
		Outcome:  tx.Outcome.String(),
		Pre:      encodeSnapshot(tx.Pre),
	}
	if tx.Post != nil {
		post := encodeSnapshot(tx.Post)
		record.Post = &post
	}
	return record, nil
}

func encodeSnapshot(s state.Snapshot) snapshotRecord {
	record := snapshotRecord{Balances: map[string]string{}}
	s.ForEachBalance(func(addr common.Address, balance *big.Int) {
		record.Balances[addr.Hex()] = balance.String()
	})
	s.ForEachField(func(contract, field string, value schema.Value) {
		record.Fields = append(record.Fields, fieldRecord{Contract: contract, Field: field, Value: value})
	})
	return record
}

func (r txRecord) decode(reg *schema.Registry) (*Transaction, error) {
	value, ok := new(big.Int).SetString(r.Value, 10)
	if !ok {
		return nil, fmt.Errorf("malformed call value %q", r.Value)
	}

	pre, err := r.Pre.decode(reg)
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		Seq: r.Seq,
		Call: CallContext{
			Sender:   common.HexToAddress(r.Sender),
			Value:    value,
			Contract: r.Contract,
			Function: r.Function,
			Args:     r.Args,
		},
		Pre: pre,
	}

	switch r.Outcome {
	case Succeeded.String():
		tx.Outcome = Succeeded
	case Reverted.String():
		tx.Outcome = Reverted
	default:
		return nil, fmt.Errorf("unknown outcome %q", r.Outcome)
	}

	if (tx.Outcome == Succeeded) != (r.Post != nil) {
		return nil, fmt.Errorf("outcome %v does not match post-state presence", tx.Outcome)
	}
	if r.Post != nil {
		if tx.Post, err = r.Post.decode(reg); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func (r snapshotRecord) decode(reg *schema.Registry) (state.Snapshot, error) {
	builder := state.NewBuilder(reg)
	for hex, dec := range r.Balances {
		balance, ok := new(big.Int).SetString(dec, 10)
		if !ok {
			return nil, fmt.Errorf("malformed balance %q for %v", dec, hex)
		}
		builder.SetBalance(common.HexToAddress(hex), balance)
	}
	for _, field := range r.Fields {
		builder.SetField(field.Contract, field.Field, field.Value)
	}
	return builder.Build()
}
