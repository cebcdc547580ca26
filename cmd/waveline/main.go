package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/waveline-audio/waveline/cmd/waveline/config"
	"github.com/waveline-audio/waveline/internal/engine"
	"github.com/waveline-audio/waveline/internal/hostapi"
	"github.com/waveline-audio/waveline/internal/mixer"
	"github.com/waveline-audio/waveline/internal/trackio"
	"github.com/waveline-audio/waveline/internal/utils"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: waveline [flags] <command> [args]

commands:
  devices              list playback and record devices
  play <file.wav>      play a WAV file
  record <file.wav>    record to a WAV file

flags:
`)
	flag.PrintDefaults()
}

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	start := flag.Float64("start", 0, "Playback start position in seconds.")
	end := flag.Float64("end", -1, "Playback end position in seconds, -1 for the end of the file.")
	loop := flag.Bool("loop", false, "Loop playback over the selection.")
	speed := flag.Float64("speed", 1, "Playback speed ratio.")
	duration := flag.Float64("duration", 10, "Recording duration in seconds.")
	flag.Usage = usage
	flag.Parse()

	config.LoadConfig(*configFilePath)
	logFilePointer, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	// --------------------------------------------------------------------------------

	host, err := hostapi.NewMalgoHost()
	if err != nil {
		slog.Error("error initializing audio host", "err", err)
		panic(err)
	}
	defer host.Close()

	store := trackio.NewWavStore()
	eng := engine.New(host, store)

	switch flag.Arg(0) {
	case "devices":
		listDevices(eng)
	case "play":
		if flag.Arg(1) == "" {
			usage()
			os.Exit(2)
		}
		playFile(eng, store, flag.Arg(1), *start, *end, *loop, *speed)
	case "record":
		if flag.Arg(1) == "" {
			usage()
			os.Exit(2)
		}
		recordFile(eng, store, flag.Arg(1), *duration)
	default:
		usage()
		os.Exit(2)
	}
}

func listDevices(eng *engine.Engine) {
	catalog := eng.Catalog()
	fmt.Println("playback devices:")
	for _, d := range catalog.OutputDevices() {
		fmt.Printf("  %s\n", d)
	}
	fmt.Println("record devices:")
	for _, d := range catalog.InputDevices() {
		fmt.Printf("  %s\n", d)
	}
}

func playFile(eng *engine.Engine, store *trackio.WavStore, path string, start, end float64, loop bool, speed float64) {
	ids, err := store.LoadFile(path)
	if err != nil {
		slog.Error("error loading audio file", "path", path, "err", err)
		panic(err)
	}

	specs := make([]mixer.TrackSpec, len(ids))
	fileEnd := 0.0
	for i, id := range ids {
		info, err := store.TrackInfo(id)
		if err != nil {
			slog.Error("error reading track info", "err", err)
			panic(err)
		}
		specs[i] = mixer.TrackSpec{ID: id, Rate: info.Rate, Gain: 1}
		if length := float64(info.Len) / float64(info.Rate); length > fileEnd {
			fileEnd = length
		}
	}
	if end < 0 || end > fileEnd {
		end = fileEnd
	}

	opts := engine.OptionsFromPreferences()
	opts.Looping = loop
	opts.Speed = speed

	token, err := eng.StartStream(engine.TransportTracks{Playback: specs}, start, end, opts)
	if err != nil {
		slog.Error("error starting playback", "err", err)
		panic(err)
	}
	slog.Info("playback started", "path", path, "token", token, "start", start, "end", end)

	for !eng.PlaybackCompleted() {
		time.Sleep(50 * time.Millisecond)
		if pos, ok := eng.GetStreamTime(); ok {
			fmt.Printf("\r%8.2fs  level %5.3f", pos, eng.OutputLevel())
		}
	}
	fmt.Println()

	if err := eng.StopStream(); err != nil {
		slog.Error("error stopping playback", "err", err)
	}
	if n := eng.Underflows(); n > 0 {
		slog.Warn("playback underflowed", "count", n)
	}
}

func recordFile(eng *engine.Engine, store *trackio.WavStore, path string, duration float64) {
	opts := engine.OptionsFromPreferences()
	channels := opts.RecordChannels
	if channels <= 0 {
		channels = 1
	}

	ids := make([]trackio.TrackID, channels)
	rate := eng.GetBestRate(true, false, opts.Rate)
	if rate == 0 {
		slog.Error("no usable sample rate on the record device")
		panic("no usable sample rate")
	}
	for ch := range ids {
		ids[ch] = store.CreateTrack(fmt.Sprintf("capture-%d", ch), rate)
	}

	token, err := eng.StartStream(engine.TransportTracks{Capture: ids}, 0, duration, opts)
	if err != nil {
		slog.Error("error starting recording", "err", err)
		panic(err)
	}
	slog.Info("recording started", "path", path, "token", token, "duration", duration)

	for !eng.PlaybackCompleted() {
		time.Sleep(50 * time.Millisecond)
		if pos, ok := eng.GetStreamTime(); ok {
			fmt.Printf("\r%8.2fs  level %5.3f", pos, eng.InputLevel())
		}
	}
	fmt.Println()

	if err := eng.StopStream(); err != nil {
		slog.Error("error while recording", "err", err)
	}
	for _, iv := range eng.LostCaptureIntervals() {
		slog.Warn("lost capture audio", "start", iv.Start, "duration", iv.Duration)
	}

	if err := store.SaveFile(path, ids); err != nil {
		slog.Error("error saving recording", "path", path, "err", err)
		panic(err)
	}
	slog.Info("recording saved", "path", path)
}
