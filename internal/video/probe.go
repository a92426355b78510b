package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

const probeTimeout = 30 * time.Second

// defaultFPS substitutes for streams whose frame rate cannot be determined.
const defaultFPS = 30.0

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	Size       string `json:"size"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

// ProbeVideo extracts stream metadata from a video file. ffprobe is tried
// first for its richer output; when it is unavailable or fails the OpenCV
// capture properties are used instead.
func ProbeVideo(ctx context.Context, path string) (*VideoInfo, error) {
	if info, err := probeWithFFprobe(ctx, path); err == nil {
		return info, nil
	}
	return probeWithOpenCV(path)
}

func probeWithFFprobe(ctx context.Context, path string) (*VideoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var stream *ffprobeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "video" {
			stream = &probe.Streams[i]
			break
		}
	}
	if stream == nil {
		return nil, fmt.Errorf("no video stream in %s", path)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", stream.Width, stream.Height)
	}

	info := &VideoInfo{
		Width:      stream.Width,
		Height:     stream.Height,
		CodecName:  stream.CodecName,
		PixFmt:     stream.PixFmt,
		FormatName: probe.Format.FormatName,
		FPS:        stream.AvgFrameRate,
	}
	info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	info.BitRate, _ = strconv.ParseInt(probe.Format.BitRate, 10, 64)
	info.SizeBytes, _ = strconv.ParseInt(probe.Format.Size, 10, 64)
	info.FPSFloat = parseFrameRate(stream.AvgFrameRate)

	if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
		info.FrameCount = n
	} else if info.Duration > 0 {
		info.FrameCount = int(info.Duration * info.FPSFloat)
	}

	return info, nil
}

// parseFrameRate evaluates the "num/den" rational used by ffprobe. Malformed
// or zero rates fall back to the default.
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || num <= 0 {
		return defaultFPS
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den <= 0 {
		return defaultFPS
	}
	return num / den
}

func probeWithOpenCV(path string) (*VideoInfo, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	defer capture.Close()

	info := &VideoInfo{
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		FPSFloat:   capture.Get(gocv.VideoCaptureFPS),
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions in %s", path)
	}
	if info.FPSFloat <= 0 {
		info.FPSFloat = defaultFPS
	}
	info.FPS = strconv.FormatFloat(info.FPSFloat, 'f', -1, 64) + "/1"
	if info.FPSFloat > 0 {
		info.Duration = float64(info.FrameCount) / info.FPSFloat
	}
	if st, err := os.Stat(path); err == nil {
		info.SizeBytes = st.Size()
	}
	return info, nil
}
