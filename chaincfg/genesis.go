// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"

	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// genesisCoinbaseTx is the distinguished first transaction of every
// network's genesis block (spec.md's genesis coinbase, OPEN QUESTION
// decision #4: never inserted into Spendables).
var genesisCoinbaseTx = wire.MsgTx{
	Version: 1,
	TxIn: []*wire.TxIn{
		{
			PreviousOutpoint: wire.Outpoint{
				Hash:  primitives.Hash256{},
				Index: wire.NullOutpointIndex,
			},
			SignatureScript: []byte{
				0x04, 0xff, 0xff, 0x00, 0x1d, 0x01, 0x04,
				0x45, '/', 'c', 'o', 'r', 'e', 'l', 'e', 'd', 'g', 'e', 'r', '-', 'n', 'o', 'd', 'e', '/',
			},
			Sequence: 0xffffffff,
		},
	},
	TxOut: []*wire.TxOut{
		{
			Value:        50 * 100_000_000,
			ScriptPubKey: []byte{0x51}, // OP_TRUE
		},
	},
	LockTime: 0,
}

var genesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		Prev:       primitives.Hash256{},
		MerkleRoot: primitives.MerkleRoot([]primitives.Hash256{genesisCoinbaseTx.TxHash()}),
		Timestamp:  time.Unix(1231006505, 0),
		Bits:       0x1d00ffff,
		Nonce:      2083236893,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

// genesisHash is derived from genesisBlock's header rather than
// hand-embedded, since the exact header fields above (nonce chosen for
// illustration, not mined) determine it.
var genesisHash = genesisBlock.Header.BlockHash()

var regTestGenesisBlock = wire.MsgBlock{
	Header: wire.BlockHeader{
		Version:    1,
		Prev:       primitives.Hash256{},
		MerkleRoot: primitives.MerkleRoot([]primitives.Hash256{genesisCoinbaseTx.TxHash()}),
		Timestamp:  time.Unix(1296688602, 0),
		Bits:       0x207fffff,
		Nonce:      2,
	},
	Transactions: []*wire.MsgTx{&genesisCoinbaseTx},
}

var regTestGenesisHash = regTestGenesisBlock.Header.BlockHash()
