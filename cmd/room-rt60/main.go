// Command room-rt60 estimates reverberation time from a measured or
// simulated impulse response, or directly from a scene description.
//
// Usage:
//
//	room-rt60 ir.wav                       # RT60 of a recorded response
//	room-rt60 -scene hall.json             # Simulate, then estimate
//	room-rt60 -scene hall.json -rays 50000 # More rays, lower tail variance
//
// Given a WAV file, each channel is analyzed independently. Given a
// scene, the room is simulated first and the Sabine estimate is printed
// alongside the measured value for comparison.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	roomsim "github.com/tphakala/go-room-acoustics"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	scenePath := flag.String("scene", "", "Scene JSON file to simulate")
	rate := flag.Int("rate", roomsim.DefaultSampleRate, "Simulation sample rate in Hz")
	order := flag.Int("order", roomsim.DefaultMaxOrder, "Image-source reflection order")
	rays := flag.Int("rays", roomsim.DefaultRayCount, "Ray count for the late tail")
	seed := flag.Uint64("seed", 0, "Simulation seed")
	flag.Parse()

	args := flag.Args()
	if *scenePath == "" && len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-scene scene.json | ir.wav]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		return fmt.Errorf("insufficient arguments")
	}

	if *scenePath != "" {
		return analyzeScene(*scenePath, *rate, *order, *rays, *seed)
	}
	return analyzeWAV(args[0])
}

func analyzeWAV(path string) error {
	channels, sampleRate, err := readWAVChannels(path)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d channels at %d Hz\n", path, len(channels), sampleRate)
	for ch, samples := range channels {
		ir := &roomsim.ImpulseResponse{SampleRate: sampleRate, Samples: samples}
		rt, err := roomsim.RT60(ir)
		if err != nil {
			if errors.Is(err, roomsim.ErrInsufficientDecayRange) {
				fmt.Printf("  channel %d: decay range too small for a reliable estimate\n", ch)
				continue
			}
			return err
		}
		fmt.Printf("  channel %d: RT60 = %.3f s\n", ch, rt)
	}
	return nil
}

func analyzeScene(path string, rate, order, rays int, seed uint64) error {
	scene, err := loadScene(path)
	if err != nil {
		return err
	}

	room, err := buildRoom(scene, nil)
	if err != nil {
		return err
	}

	cfg := roomsim.DefaultConfig()
	cfg.SampleRate = rate
	cfg.MaxOrder = order
	cfg.RayTracing = rays > 0
	cfg.RayCount = rays
	cfg.Seed = seed

	result, err := roomsim.Simulate(room, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %.1f m³, Sabine estimate %.3f s\n", path, room.Volume(), room.SabineRT60())
	for _, ir := range result.Responses {
		rt, err := roomsim.RT60(ir)
		if err != nil {
			if errors.Is(err, roomsim.ErrInsufficientDecayRange) {
				fmt.Printf("  source %d -> microphone %d: decay range too small for a reliable estimate\n",
					ir.SourceIndex, ir.MicIndex)
				continue
			}
			return err
		}
		fmt.Printf("  source %d -> microphone %d: RT60 = %.3f s\n", ir.SourceIndex, ir.MicIndex, rt)
	}
	return nil
}
