package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"proctor/internal/app"
	"proctor/internal/config"
	"proctor/internal/dto"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	modeStream  = "stream"
	modeAnalyze = "analyze-video"
)

var (
	mode       string
	videoPath  string
	maxFrames  int
	quiet      bool
	configPath string
	camera     int
	display    bool
	listenAddr string
)

// errFailed marks a run whose failure was already reported on stdout.
var errFailed = errors.New("analysis failed")

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "proctor",
		Short: "Flags exam-integrity violations in webcam streams and recordings",
		Long: `proctor watches a live webcam or analyzes a recorded video and reports likely
violations: no person in view, more than one person, or a phone or other device.

In analyze-video mode a single JSON verdict is written to stdout; all logs go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&mode, "mode", modeStream, "Run mode: stream or analyze-video")
	flags.StringVar(&videoPath, "video", "", "Video file or s3://bucket/key to analyze")
	flags.IntVar(&maxFrames, "max-frames", 8, "Maximum number of frames to analyze")
	flags.BoolVar(&quiet, "quiet", false, "Suppress progress logging")
	flags.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flags.IntVar(&camera, "camera", 0, "Camera device index for stream mode")
	flags.BoolVar(&display, "display", false, "Show annotated frames in a local window")
	flags.StringVar(&listenAddr, "listen", "", "Address for live viewers, e.g. :8080")

	return rootCmd
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case modeAnalyze:
		return analyzeVideo(ctx, cmd, cmd.OutOrStdout())
	case modeStream:
		return stream(ctx, cmd)
	default:
		return fmt.Errorf("unknown mode %q (expected %s or %s)", mode, modeStream, modeAnalyze)
	}
}

// loadConfig layers the environment, the YAML file and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("max-frames") {
		cfg.MaxFrames = maxFrames
	}
	if flags.Changed("camera") {
		cfg.CameraIndex = camera
	}
	if flags.Changed("display") {
		cfg.Display = display
	}
	if flags.Changed("listen") {
		cfg.ListenAddr = listenAddr
	}
	cfg.Quiet = quiet

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// analyzeVideo always writes exactly one verdict to out. Faults produce an error verdict
// and a failing exit status.
func analyzeVideo(ctx context.Context, cmd *cobra.Command, out io.Writer) error {
	if videoPath == "" {
		return writeVerdict(out, dto.ErrorVerdict("video path required"))
	}

	verdict, err := runAnalysis(ctx, cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Video analysis failed: %v\n", err)
		if werr := writeVerdict(out, dto.ErrorVerdict(err.Error())); werr != nil {
			return werr
		}
		return errFailed
	}
	return writeVerdict(out, verdict)
}

func runAnalysis(ctx context.Context, cmd *cobra.Command) (verdict dto.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return dto.Verdict{}, err
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		return dto.Verdict{}, err
	}
	defer application.Close()

	return application.AnalyzeVideo(ctx, videoPath, cfg.MaxFrames)
}

func stream(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.RunStream(ctx)
}

func writeVerdict(out io.Writer, verdict dto.Verdict) error {
	return json.NewEncoder(out).Encode(verdict)
}
