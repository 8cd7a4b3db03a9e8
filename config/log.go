// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"github.com/coreledger-node/node/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.CNFG)
