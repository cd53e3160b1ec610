// Command listen builds Listeners from YAML configurations
// and uses them to encode batches of acoustic features.
//
// Usage:
//
//	listen init -c listener.yaml -m listener.model
//	listen encode -m listener.model -i features.msgpack -o encoded.msgpack
//	listen encode -c listener.yaml --random-batch 4 --random-steps 100 -o out.msgpack
//	listen shapes -c listener.yaml --lengths 100,73,12
//
// Feature and encoding files are msgpack documents; see
// FeatureBatch and Encoding.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("listen failed")
		os.Exit(1)
	}
}
