// Command room-render simulates the impulse response of a room described
// by a JSON scene file and writes the result as a WAV file, one channel
// per microphone.
//
// Usage:
//
//	room-render -scene hall.json ir.wav                 # Impulse responses
//	room-render -scene hall.json -in dry.wav wet.wav    # Auralize a recording
//	room-render -scene hall.json -order 4 -rays 50000 -seed 7 ir.wav
//
// Without -in, every source emits a unit impulse and the output is the
// room's impulse response. With -in, the input WAV is convolved with each
// response, placing the recording inside the room.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	roomsim "github.com/tphakala/go-room-acoustics"
)

const minRequiredArgs = 1

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	scenePath := flag.String("scene", "", "Scene JSON file (required)")
	inputPath := flag.String("in", "", "Input WAV to auralize (default: unit impulse)")
	rate := flag.Int("rate", roomsim.DefaultSampleRate, "Output sample rate in Hz")
	order := flag.Int("order", roomsim.DefaultMaxOrder, "Image-source reflection order")
	rays := flag.Int("rays", roomsim.DefaultRayCount, "Ray count for the late tail (0 disables ray tracing)")
	seed := flag.Uint64("seed", 0, "Simulation seed (equal seeds give identical output)")
	radius := flag.Float64("radius", roomsim.DefaultReceiverRadius, "Receiver sphere radius in meters")
	air := flag.Bool("air", false, "Enable air absorption")
	crossover := flag.Float64("crossover", 0, "Image/ray crossover time in seconds (0 = automatic)")
	maxTime := flag.Float64("maxtime", 0, "Response time budget in seconds (0 = automatic)")
	normalize := flag.Bool("normalize", true, "Normalize output peak")
	bits := flag.Int("bits", 16, "Output bit depth: 16, 24 or 32")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	args := flag.Args()
	if *scenePath == "" || len(args) < minRequiredArgs {
		fmt.Fprintf(os.Stderr, "Usage: %s -scene scene.json [options] output.wav\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -scene hall.json ir.wav              # Room impulse responses\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -scene hall.json -in dry.wav wet.wav # Auralize a recording\n", os.Args[0])
		return fmt.Errorf("insufficient arguments")
	}
	outputPath := args[0]

	scene, err := loadScene(*scenePath)
	if err != nil {
		return err
	}

	var signal []float64
	if *inputPath != "" {
		var inputRate int
		signal, inputRate, err = readMonoWAV(*inputPath)
		if err != nil {
			return err
		}
		if inputRate != *rate {
			return fmt.Errorf("input rate %d Hz does not match output rate %d Hz (resample the input first)",
				inputRate, *rate)
		}
		if *verbose {
			log.Printf("Input: %s (%d samples at %d Hz)", *inputPath, len(signal), inputRate)
		}
	}

	room, err := buildRoom(scene, signal)
	if err != nil {
		return err
	}

	cfg := roomsim.DefaultConfig()
	cfg.SampleRate = *rate
	cfg.MaxOrder = *order
	cfg.RayTracing = *rays > 0
	cfg.RayCount = *rays
	cfg.ReceiverRadius = *radius
	cfg.AirAbsorption = *air
	cfg.Seed = *seed
	cfg.CrossoverTime = *crossover
	cfg.MaxTime = *maxTime

	if *verbose {
		log.Printf("Scene: %s (%d walls, %.1f m³, %d sources, %d microphones)",
			*scenePath, room.NumWalls(), room.Volume(), room.NumSources(), room.NumMicrophones())
		log.Printf("Simulation: order %d, %d rays, seed %d", cfg.MaxOrder, cfg.RayCount, cfg.Seed)
	}

	start := time.Now()
	result, err := roomsim.Simulate(room, cfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if *verbose {
		log.Printf("Crossover: %.1f ms, time budget: %.2f s", result.CrossoverTime*1000, result.MaxTime)
		for _, ir := range result.Responses {
			log.Printf("Source %d -> microphone %d: %d image paths, %.3f s response",
				ir.SourceIndex, ir.MicIndex, ir.NumImagePaths, ir.Duration())
		}
	}

	pcm, err := roomsim.RenderPCM(room, result, roomsim.RenderOptions{
		Normalize: *normalize,
		BitDepth:  *bits,
	})
	if err != nil {
		return err
	}

	if err := writeWAV(outputPath, pcm, *rate, *bits); err != nil {
		return err
	}

	fmt.Printf("Rendered %s -> %s\n", filepath.Base(*scenePath), filepath.Base(outputPath))
	fmt.Printf("  %d channels, %d Hz, %d-bit, %d samples\n",
		len(pcm), *rate, *bits, len(pcm[0]))
	fmt.Printf("  Simulation time: %.2fs\n", elapsed.Seconds())

	return nil
}
