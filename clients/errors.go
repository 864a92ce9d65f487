package clients

import (
	"errors"
	"strings"
)

// ChainErrorKind buckets transaction failures for user-facing alerts.
type ChainErrorKind string

const (
	ChainErrRejected          ChainErrorKind = "rejected"
	ChainErrInsufficientFunds ChainErrorKind = "insufficient_funds"
	ChainErrReverted          ChainErrorKind = "reverted"
	ChainErrPending           ChainErrorKind = "pending"
	ChainErrOther             ChainErrorKind = "other"
)

var chainAlerts = map[ChainErrorKind]string{
	ChainErrRejected:          "Transaction rejected by the user.",
	ChainErrInsufficientFunds: "Transaction failed: Insufficient funds.",
	ChainErrReverted:          "Transaction failed: reverted by the contract.",
	ChainErrPending:           "Transaction submitted but not yet confirmed. Check your wallet before retrying.",
	ChainErrOther:             "Transaction failed.",
}

// ClassifyChainError matches wallet and node error text. Nodes and wallets
// only surface these conditions as message substrings.
func ClassifyChainError(err error) ChainErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrReverted) {
		return ChainErrReverted
	}
	if errors.Is(err, ErrPending) {
		return ChainErrPending
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "action_rejected"),
		strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "user denied"):
		return ChainErrRejected
	case strings.Contains(msg, "insufficient funds"):
		return ChainErrInsufficientFunds
	default:
		return ChainErrOther
	}
}

// ChainAlert returns the caller-safe alert for err.
func ChainAlert(err error) string {
	if err == nil {
		return ""
	}
	return chainAlerts[ClassifyChainError(err)]
}
