// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"github.com/coreledger-node/node/logger"
	"github.com/coreledger-node/node/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.NODE)
var spawn = panics.GoroutineWrapperFunc(log)
