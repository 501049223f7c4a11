package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/cyder/internal/domain"
)

var probeCmd = &cobra.Command{
	Use:   "probe <file>...",
	Short: "Show the duration of audio files",
	Long: `Run ffprobe on each file and print its duration. Durations are cached by path,
size and modification time, so probing an unchanged file again is instant.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

var installCmd = &cobra.Command{
	Use:   "install [binary]...",
	Short: "Download ffmpeg, ffprobe or youtube-dl",
	Long: `Download and extract binaries into the local exes directory. Binaries already
on PATH or in the exes directory are left alone. Without arguments, the binaries
playback needs (ffmpeg and ffprobe) are installed.`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(installCmd)
}

func runProbe(cmd *cobra.Command, args []string) (err error) {
	application, err := newApplication(cmd, false)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, application.Shutdown())
	}()

	library, _, _, _ := application.GetServices()
	tools := application.Toolchain()

	table := NewTableWriter(cmd.OutOrStdout(), "FILE", "DURATION", "SIZE", "MODIFIED")
	defer table.Flush()

	for _, path := range args {
		info, statErr := os.Stat(path)
		if statErr != nil {
			table.AddRow(path, formatMillis(domain.UnknownDuration), "-", "-")
			continue
		}
		if !library.IsSupportedAudio(path) {
			table.AddRow(path, "not audio", humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
			continue
		}

		millis := tools.ProbeDurationMillis(cmd.Context(), path)
		table.AddRow(path, formatMillis(millis), humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
	return nil
}

func runInstall(cmd *cobra.Command, args []string) (err error) {
	binaries := domain.RequiredBinaries
	if len(args) > 0 {
		binaries = make([]domain.Binary, 0, len(args))
		for _, arg := range args {
			binary, ok := parseBinary(arg)
			if !ok {
				return domain.NewValidationError("binary", arg, "must be ffmpeg, ffprobe, ffplay or youtube-dl")
			}
			binaries = append(binaries, binary)
		}
	}

	application, err := newApplication(cmd, false)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, application.Shutdown())
	}()

	tools := application.Toolchain()
	out := cmd.OutOrStdout()

	var errs []error
	for _, binary := range binaries {
		if path, resolveErr := tools.ResolveCommand(binary); resolveErr == nil {
			_, _ = fmt.Fprintf(out, "%s already installed at %s\n", binary, path)
			continue
		}

		started := time.Now()
		ok, installErr := tools.DownloadAndInstall(cmd.Context(), binary)
		switch {
		case installErr != nil:
			errs = append(errs, fmt.Errorf("install %s: %w", binary, installErr))
		case !ok:
			errs = append(errs, fmt.Errorf("install %s: archive did not contain it", binary))
		default:
			path, _ := tools.ResolveCommand(binary)
			_, _ = fmt.Fprintf(out, "installed %s to %s in %s\n", binary, describeFile(path),
				time.Since(started).Round(time.Millisecond))
		}
	}
	return errors.Join(errs...)
}

func parseBinary(name string) (domain.Binary, bool) {
	for _, binary := range []domain.Binary{
		domain.BinaryFFmpeg, domain.BinaryFFprobe, domain.BinaryFFplay, domain.BinaryYoutubeDL,
	} {
		if string(binary) == name {
			return binary, true
		}
	}
	return "", false
}
