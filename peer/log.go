// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"fmt"
	"strings"
	"time"

	"github.com/coreledger-node/node/logger"
	"github.com/coreledger-node/node/txscript"
	"github.com/coreledger-node/node/util/panics"
	"github.com/coreledger-node/node/wire"
)

// maxRejectReasonLen is the maximum length of a sanitized reject reason
// that will be logged.
const maxRejectReasonLen = 250

var log, _ = logger.Get(logger.SubsystemTags.PEER)
var spawn = panics.GoroutineWrapperFunc(log)

// logClosure is a closure that can be printed with %s to be used to
// generate expensive-to-create data for a detailed log level and avoid doing
// the work if the data isn't printed.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}

// formatLockTime returns a transaction lock time as a human-readable string.
func formatLockTime(lockTime uint32) string {
	if lockTime < txscript.LockTimeThreshold {
		return fmt.Sprintf("height %d", lockTime)
	}
	return time.Unix(int64(lockTime), 0).String()
}

// invSummary returns an inventory message as a human-readable string.
func invSummary(invList []*wire.InvVect) string {
	invLen := len(invList)
	if invLen == 0 {
		return "empty"
	}

	if invLen == 1 {
		iv := invList[0]
		switch iv.Type {
		case wire.InvTypeBlock:
			return fmt.Sprintf("block %s", iv.Hash)
		case wire.InvTypeTx:
			return fmt.Sprintf("tx %s", iv.Hash)
		}
		return fmt.Sprintf("unknown (%d) %s", uint32(iv.Type), iv.Hash)
	}

	return fmt.Sprintf("size %d", invLen)
}

// sanitizeString strips any characters which are even remotely dangerous,
// such as html control characters, from the passed string. It also limits
// it to the passed maximum size, which can be 0 for unlimited. When the
// string is limited, it will also add "..." to the string to indicate it
// was truncated.
func sanitizeString(str string, maxLength uint) string {
	const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXY" +
		"Z01234567890 .,;_/:?@"

	str = strings.Map(func(r rune) rune {
		if strings.ContainsRune(safeChars, r) {
			return r
		}
		return -1
	}, str)

	if maxLength > 0 && uint(len(str)) > maxLength {
		str = str[:maxLength]
		str = str + "..."
	}
	return str
}

// messageSummary returns a human-readable string which summarizes a
// message. Not all messages have or need a summary. This is used for debug
// logging.
func messageSummary(msg wire.Message) string {
	switch msg := msg.(type) {
	case *wire.MsgVersion:
		return fmt.Sprintf("agent %s, pver %d, height %d", msg.UserAgent,
			msg.ProtocolVersion, msg.StartHeight)

	case *wire.MsgVerAck:
		// No summary.

	case *wire.MsgGetAddr:
		// No summary.

	case *wire.MsgAddr:
		return fmt.Sprintf("%d addr", len(msg.AddrList))

	case *wire.MsgPing:
		return fmt.Sprintf("nonce %d", msg.Nonce)

	case *wire.MsgPong:
		return fmt.Sprintf("nonce %d", msg.Nonce)

	case *wire.MsgTxWire:
		return fmt.Sprintf("hash %s, %d inputs, %d outputs, lock %s",
			msg.TxHash(), len(msg.TxIn), len(msg.TxOut),
			formatLockTime(msg.LockTime))

	case *wire.MsgBlockWire:
		header := &msg.Header
		return fmt.Sprintf("hash %s, ver %d, %d tx, %s", msg.BlockHash(),
			header.Version, len(msg.Transactions), header.Timestamp)

	case *wire.MsgInv:
		return invSummary(msg.InvList)

	case *wire.MsgGetData:
		return invSummary(msg.InvList)

	case *wire.MsgGetBlocks:
		return fmt.Sprintf("locator %d, stop %s", len(msg.Locator), msg.HashStop)

	case *wire.MsgGetHeaders:
		return fmt.Sprintf("locator %d, stop %s", len(msg.Locator), msg.HashStop)

	case *wire.MsgHeaders:
		return fmt.Sprintf("num %d", len(msg.Headers))

	case *wire.MsgMerkleBlock:
		return fmt.Sprintf("hash %s, tx %d", msg.Header.BlockHash(), msg.Transactions)

	case *wire.MsgFilterLoad:
		return fmt.Sprintf("%d bytes", len(msg.Filter))

	case *wire.MsgFilterAdd:
		return fmt.Sprintf("%d bytes", len(msg.Data))

	case *wire.MsgReject:
		rejCommand := sanitizeString(msg.RejectedCommand, wire.CommandSize)
		rejReason := sanitizeString(msg.Reason, maxRejectReasonLen)
		return fmt.Sprintf("cmd %s, code %#x, reason %s", rejCommand,
			msg.Code, rejReason)

	case *wire.RawMessage:
		return fmt.Sprintf("%s, %d bytes", msg.CommandName, len(msg.Payload))
	}

	// No summary for other messages.
	return ""
}
