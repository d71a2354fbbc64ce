// Command srcman runs the multichannel SRC manager against audio files or a
// live output device.
//
// Usage:
//
//	srcman convert --rate 96000 input.wav output.wav
//	srcman convert --rate-at 12000:44100 --rate-at 24000:48000 input.wav output.wav
//	srcman play --telemetry input.flac
//	srcman config --config srcman.yaml
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("srcman failed")
		os.Exit(1)
	}
}
