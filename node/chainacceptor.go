// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"github.com/coreledger-node/node/blockchain"
	"github.com/coreledger-node/node/cerrors"
	"github.com/coreledger-node/node/primitives"
	"github.com/coreledger-node/node/wire"
)

// ChainAcceptor adapts a *blockchain.BlockChain to filters.ChainAcceptor:
// BlockChain.AcceptBlock reports a missing parent as a
// cerrors.OrphanMissingParent error rather than returning a bool, so this
// is where that distinction gets translated into ChainAcceptor's
// (accepted bool, err error) shape.
type ChainAcceptor struct {
	chain *blockchain.BlockChain
}

// NewChainAcceptor wraps chain as a filters.ChainAcceptor, for the
// caller assembling a filters.Handler's BlockFilter ahead of building
// this node's Config.
func NewChainAcceptor(chain *blockchain.BlockChain) *ChainAcceptor {
	return &ChainAcceptor{chain: chain}
}

// AcceptBlock implements filters.ChainAcceptor.
func (a *ChainAcceptor) AcceptBlock(block *wire.MsgBlock) (bool, error) {
	err := a.chain.AcceptBlock(block)
	if err == nil {
		return true, nil
	}
	if cerrors.Is(err, cerrors.OrphanMissingParent) {
		return false, nil
	}
	return false, err
}

// HaveBlock implements filters.ChainAcceptor.
func (a *ChainAcceptor) HaveBlock(hash primitives.Hash256) bool {
	return a.chain.HaveBlock(hash)
}
