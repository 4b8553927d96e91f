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

//go:generate mockgen -source provider.go -destination provider_mocks.go -package trace

// TxInfo wraps a transaction with its position while being delivered
// through a provider.
type TxInfo struct {
	Seq         uint64
	Transaction *Transaction
}

// Consumer is a callback receiving transactions in trace order. An
// error returned by the consumer aborts the delivery and is passed
// through to the Run caller.
type Consumer func(TxInfo) error

// Provider is the interface through which transaction traces reach the
// engine: the execution environment (or a persistent store) delivers
// an ordered sequence of transactions in the range [from, to) to the
// consumer. A negative to means "until exhausted".
type Provider interface {
	// Run iterates through the transactions in the given range and
	// forwards them to the consumer, in sequence order.
	Run(from, to int, consume Consumer) error

	// Close releases any resources held by the provider.
	Close()
}
