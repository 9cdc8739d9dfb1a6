package audio

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

const wavHeaderSize = 44

// Archive keeps a compressed copy of every recorded answer under
// <dir>/<session_id>/.
type Archive struct {
	dir        string
	sampleRate int

	encode func(rawPath, outBase string, sampleRate int) (string, error)
}

func NewArchive(dir string, sampleRate int) *Archive {
	if dir == "" {
		dir = filepath.Join("data", "audio")
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Archive{dir: dir, sampleRate: sampleRate, encode: defaultEncode}
}

// Store encodes a WAV answer and returns the path of the stored file.
func (a *Archive) Store(sessionID, name string, wav []byte) (string, error) {
	if len(wav) <= wavHeaderSize {
		return "", fmt.Errorf("store %s: recording is empty", name)
	}
	sessionDir := filepath.Join(a.dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}

	rawPath := filepath.Join(sessionDir, name+".pcm")
	if err := os.WriteFile(rawPath, wav[wavHeaderSize:], 0o644); err != nil {
		return "", fmt.Errorf("write raw pcm file: %w", err)
	}
	defer os.Remove(rawPath)

	return a.encode(rawPath, filepath.Join(sessionDir, name), a.sampleRate)
}

func defaultEncode(rawPath, outBase string, sampleRate int) (string, error) {
	mp3Path := outBase + ".mp3"
	if err := encodeWithFFmpeg(rawPath, mp3Path, sampleRate); err == nil {
		return mp3Path, nil
	}
	if err := encodeWithLame(rawPath, mp3Path, sampleRate); err == nil {
		return mp3Path, nil
	}

	wavPath := outBase + ".wav"
	if err := pcmToWav(rawPath, wavPath, sampleRate); err != nil {
		return "", fmt.Errorf("encode wav fallback: %w", err)
	}
	return wavPath, nil
}

func encodeWithFFmpeg(rawPath, outputPath string, sampleRate int) error {
	return exec.Command(
		"ffmpeg",
		"-y", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-i", rawPath,
		outputPath,
	).Run()
}

func encodeWithLame(rawPath, outputPath string, sampleRate int) error {
	khz := strconv.FormatFloat(float64(sampleRate)/1000.0, 'f', -1, 64)
	return exec.Command(
		"lame", "--quiet",
		"-r",
		"-s", khz,
		"--bitwidth", "16",
		"-m", "m",
		rawPath,
		outputPath,
	).Run()
}

func pcmToWav(rawPath, wavPath string, sampleRate int) error {
	pcmData, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw pcm data: %w", err)
	}
	header, err := wavHeader(len(pcmData), sampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return fmt.Errorf("build wav header: %w", err)
	}
	return os.WriteFile(wavPath, append(header, pcmData...), 0o644)
}
