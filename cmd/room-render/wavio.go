package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// Sample format constants
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0

	// WAV format constants
	wavHeaderSize      = 44 // Total WAV header size in bytes
	wavRiffHeaderSize  = 36 // RIFF header size (file size - 8 = riffHeaderSize + dataSize)
	wavPCMSubchunkSize = 16 // fmt subchunk size for PCM format
	wavFileSizeOffset  = 4  // Byte offset for file size field in header
	wavDataSizeOffset  = 40 // Byte offset for data size field in header

	// Byte sizes for PCM sample formats
	bytesPerSample16 = 2
	bytesPerSample24 = 3
	bytesPerSample32 = 4
	bitsPerByte      = 8

	// Bit shift amounts for 24-bit sample encoding
	bitShift8  = 8
	bitShift16 = 16

	// I/O buffer sizes
	wavWriterBufferSize = 256 * 1024 // 256KB write buffer
	uint32Size          = 4          // Size of uint32 in bytes
)

// readMonoWAV decodes a WAV file into normalized float64 samples in
// [-1, 1], mixing multichannel input down to mono by averaging. It
// returns the samples and the file's sample rate.
func readMonoWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file: %s", path)
	}

	var buf *audio.IntBuffer
	buf, err = decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, 0, fmt.Errorf("no channels in %s", path)
	}

	maxVal := maxValueFor(int(decoder.BitDepth))
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) / maxVal
	}

	return samples, buf.Format.SampleRate, nil
}

func maxValueFor(bitDepth int) float64 {
	switch bitDepth {
	case bitsPerSample16:
		return maxInt16
	case bitsPerSample24:
		return maxInt24
	case bitsPerSample32:
		return maxInt32
	default:
		return maxInt16
	}
}

// writeWAV writes one channel per microphone as an interleaved PCM WAV
// file. All channels must have equal length.
func writeWAV(path string, channels [][]int, sampleRate, bitDepth int) (err error) {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return fmt.Errorf("no samples to write")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	w, err := newPCMWAVWriter(f, sampleRate, bitDepth, len(channels))
	if err != nil {
		return fmt.Errorf("failed to create WAV writer: %w", err)
	}

	interleaved := interleave(channels)
	if err := w.WriteSamples(interleaved); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}

	return w.Close()
}

// interleave converts per-channel sample slices to the interleaved frame
// order WAV expects.
func interleave(channels [][]int) []int {
	numChannels := len(channels)
	frames := len(channels[0])
	out := make([]int, frames*numChannels)
	for i := range frames {
		base := i * numChannels
		for ch := range numChannels {
			out[base+ch] = channels[ch][i]
		}
	}
	return out
}

// pcmWAVWriter writes PCM data directly without per-sample allocations,
// patching the header sizes on Close.
type pcmWAVWriter struct {
	w          *bufio.Writer
	f          *os.File
	sampleRate int
	bitDepth   int
	channels   int
	dataSize   uint32
	byteBuf    []byte
}

func newPCMWAVWriter(f *os.File, sampleRate, bitDepth, channels int) (*pcmWAVWriter, error) {
	w := &pcmWAVWriter{
		w:          bufio.NewWriterSize(f, wavWriterBufferSize),
		f:          f,
		sampleRate: sampleRate,
		bitDepth:   bitDepth,
		channels:   channels,
	}

	// Write WAV header (44 bytes) with placeholder sizes
	if err := w.writeHeader(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *pcmWAVWriter) writeHeader() error {
	byteRate := w.sampleRate * w.channels * (w.bitDepth / bitsPerByte)
	blockAlign := w.channels * (w.bitDepth / bitsPerByte)

	header := make([]byte, wavHeaderSize)

	// RIFF header
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 0) // Placeholder for file size - 8
	copy(header[8:12], "WAVE")

	// fmt subchunk
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], wavPCMSubchunkSize)
	binary.LittleEndian.PutUint16(header[20:22], 1) // AudioFormat (1 = PCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(w.bitDepth))

	// data subchunk
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], 0) // Placeholder for data size

	_, err := w.w.Write(header)
	return err
}

// WriteSamples writes interleaved samples at the writer's bit depth.
func (w *pcmWAVWriter) WriteSamples(samples []int) error {
	switch w.bitDepth {
	case bitsPerSample24:
		return w.writeSamples24(samples)
	case bitsPerSample32:
		return w.writeSamples32(samples)
	default:
		return w.writeSamples16(samples)
	}
}

func (w *pcmWAVWriter) writeSamples16(samples []int) error {
	needed := len(samples) * bytesPerSample16
	if len(w.byteBuf) < needed {
		w.byteBuf = make([]byte, needed)
	}

	buf := w.byteBuf[:needed]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*bytesPerSample16:], uint16(int16(s)))
	}

	written, err := w.w.Write(buf)
	w.dataSize += uint32(written)
	return err
}

func (w *pcmWAVWriter) writeSamples24(samples []int) error {
	needed := len(samples) * bytesPerSample24
	if len(w.byteBuf) < needed {
		w.byteBuf = make([]byte, needed)
	}

	buf := w.byteBuf[:needed]
	for i, s := range samples {
		buf[i*bytesPerSample24] = byte(s)
		buf[i*bytesPerSample24+1] = byte(s >> bitShift8)
		buf[i*bytesPerSample24+2] = byte(s >> bitShift16)
	}

	written, err := w.w.Write(buf)
	w.dataSize += uint32(written)
	return err
}

func (w *pcmWAVWriter) writeSamples32(samples []int) error {
	needed := len(samples) * bytesPerSample32
	if len(w.byteBuf) < needed {
		w.byteBuf = make([]byte, needed)
	}

	buf := w.byteBuf[:needed]
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample32:], uint32(int32(s)))
	}

	written, err := w.w.Write(buf)
	w.dataSize += uint32(written)
	return err
}

// Close flushes the buffer and updates the WAV header with final sizes.
func (w *pcmWAVWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}

	fileSize := wavRiffHeaderSize + w.dataSize

	if _, err := w.f.Seek(wavFileSizeOffset, io.SeekStart); err != nil {
		return err
	}
	sizeBytes := make([]byte, uint32Size)
	binary.LittleEndian.PutUint32(sizeBytes, fileSize)
	if _, err := w.f.Write(sizeBytes); err != nil {
		return err
	}

	if _, err := w.f.Seek(wavDataSizeOffset, io.SeekStart); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(sizeBytes, w.dataSize)
	if _, err := w.f.Write(sizeBytes); err != nil {
		return err
	}

	return nil
}
