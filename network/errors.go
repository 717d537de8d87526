package network

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the indexer.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrTxNotFound indicates the requested transaction or output does not exist.
	ErrTxNotFound = errors.New("network: transaction not found")

	// ErrBroadcastRejected indicates the relay refused the transaction.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")

	// ErrInvalidResponse indicates the indexer returned a malformed response.
	ErrInvalidResponse = errors.New("network: invalid response")

	// ErrInvalidAddress indicates an address could not be decoded for the
	// configured network.
	ErrInvalidAddress = errors.New("network: invalid address")
)
