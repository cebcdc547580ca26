package utils

import "github.com/spf13/viper"

// Set the viper defaults for the audio engine preferences.
// For use in cmd/waveline, as well as several examples.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("samplerate", 44100)
	viper.SetDefault("framesperbuffer", 512)
	viper.SetDefault("playbackdevice", "")
	viper.SetDefault("recorddevice", "")
	viper.SetDefault("playbackchannels", 2)
	viper.SetDefault("recordchannels", 1)
	viper.SetDefault("latencyduration", 100.0)
	viper.SetDefault("latencyunit", "ms")
	viper.SetDefault("latencycorrection", -130.0)
}
