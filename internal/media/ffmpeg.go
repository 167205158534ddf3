package media

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
)

// lookFFmpeg locates the external ffmpeg binary. A variable so tests can
// simulate an environment without ffmpeg.
var lookFFmpeg = func() (string, error) { return exec.LookPath("ffmpeg") }

// remuxToMP4 converts concatenated transport-stream data into an MP4
// container by invoking ffmpeg with stream copy (no re-encode). Best-effort:
// when ffmpeg is unavailable or the conversion fails, the original bytes are
// returned in their "ts" container.
func remuxToMP4(ctx context.Context, tsData []byte) (data []byte, container string) {
	ffmpeg, err := lookFFmpeg()
	if err != nil {
		slog.Warn("ffmpeg not found, keeping transport stream format")
		return tsData, "ts"
	}

	in, err := os.CreateTemp("", "remux-*.ts")
	if err != nil {
		return tsData, "ts"
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(tsData); err != nil {
		in.Close()
		return tsData, "ts"
	}
	in.Close()

	out, err := os.CreateTemp("", "remux-*.mp4")
	if err != nil {
		return tsData, "ts"
	}
	out.Close()
	defer os.Remove(out.Name())

	cmd := exec.CommandContext(ctx, ffmpeg, "-i", in.Name(), "-c", "copy", "-y", out.Name())
	if output, err := cmd.CombinedOutput(); err != nil {
		slog.Warn("ffmpeg remux failed, keeping transport stream format",
			slog.Any("error", err),
			slog.String("output", tail(string(output), 300)),
		)
		return tsData, "ts"
	}

	mp4, err := os.ReadFile(out.Name())
	if err != nil || len(mp4) == 0 {
		return tsData, "ts"
	}
	return mp4, "mp4"
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
