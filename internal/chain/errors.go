package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	// ErrSessionInvalidated marks writes attempted after the session that
	// produced the gateway was replaced or cleared.
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrReadOnlyGateway    = errors.New("gateway has no signer")
	ErrMissingAddress     = errors.New("no address configured")
)

// ReadError covers unreachable RPC, malformed responses and reverted calls.
type ReadError struct {
	Contract string
	Method   string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("chain read %s.%s: %v", e.Contract, e.Method, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError covers rejected signing, failed sends and contract reverts.
// Reason carries the on-chain revert string verbatim when one was returned.
type WriteError struct {
	Contract string
	Method   string
	Reason   string
	Err      error
}

func (e *WriteError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("chain write %s.%s: %v (revert: %s)", e.Contract, e.Method, e.Err, e.Reason)
	}
	return fmt.Sprintf("chain write %s.%s: %v", e.Contract, e.Method, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// RevertReason extracts the revert string from an eth_call error, if the
// node returned ABI-encoded revert data. Falls back to scraping the error
// message some providers use.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var de interface {
		error
		ErrorData() interface{}
	}
	if errors.As(err, &de) {
		if encoded, ok := de.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(encoded); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted"); i >= 0 {
		reason := strings.TrimPrefix(msg[i:], "execution reverted")
		reason = strings.TrimPrefix(reason, ":")
		return strings.TrimSpace(reason)
	}
	return ""
}
