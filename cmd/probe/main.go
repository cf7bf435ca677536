// Command probe decodes audio files the way the player does and reports
// their format, seek accuracy and decoding speed.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/cadence/internal/decoder"
)

type options struct {
	decode bool
	seek   time.Duration
	mode   string
}

func main() {
	if err := newCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "probe:", err)
		os.Exit(1)
	}
}

func newCmd(out io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "probe FILE...",
		Short:         "Inspect how audio files decode",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				if err := probe(out, path, opts); err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.decode, "decode", "d", false, "decode the whole file and report throughput")
	cmd.Flags().DurationVarP(&opts.seek, "seek", "s", 0, "seek to this position and report where decoding resumes")
	cmd.Flags().StringVar(&opts.mode, "seek-mode", decoder.SeekAccurate.String(), "accurate or coarse")
	return cmd
}

func probe(w io.Writer, path string, opts options) error {
	mode, err := decoder.ParseSeekMode(opts.mode)
	if err != nil {
		return err
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	d, err := decoder.Open(path, decoder.Options{SeekMode: mode})
	if err != nil {
		return err
	}
	defer d.Close()

	info := d.Info()
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  size       %s\n", humanize.Bytes(uint64(st.Size())))
	fmt.Fprintf(w, "  codec      %s\n", info.Codec)
	fmt.Fprintf(w, "  format     %s, %d ch, %d bytes/sample\n",
		humanize.SI(float64(info.Format.SampleRate), "Hz"), info.Format.NumChannels, info.Format.Precision)
	if info.Frames > 0 {
		fmt.Fprintf(w, "  length     %s frames (%s)\n", humanize.Comma(int64(info.Frames)), info.Duration().Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "  length     unknown\n")
	}
	fmt.Fprintf(w, "  tolerance  %d frames\n", d.Tolerance())

	if opts.seek > 0 {
		target := int64(info.Format.SampleRate.N(opts.seek))
		landed, err := d.Seek(target)
		if err != nil {
			return fmt.Errorf("seek: %w", err)
		}
		fmt.Fprintf(w, "  seek       %s -> frame %s (off by %d)\n",
			opts.seek, humanize.Comma(landed), landed-target)
	}

	if opts.decode {
		frames, elapsed, err := decodeAll(d)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		audio := info.Format.SampleRate.D(int(frames))
		speed := 0.0
		if elapsed > 0 {
			speed = audio.Seconds() / elapsed.Seconds()
		}
		fmt.Fprintf(w, "  decoded    %s frames in %s (%sx realtime)\n",
			humanize.Comma(frames), elapsed.Round(time.Millisecond), humanize.FormatFloat("#,###.#", speed))
	}
	return nil
}

func decodeAll(d *decoder.Decoder) (int64, time.Duration, error) {
	start := time.Now()
	var frames int64
	for {
		blk, err := d.Next()
		if errors.Is(err, io.EOF) {
			return frames, time.Since(start), nil
		}
		if err != nil {
			return frames, time.Since(start), err
		}
		frames += int64(blk.Len())
	}
}
