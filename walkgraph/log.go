package walkgraph

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "walkgraph")
