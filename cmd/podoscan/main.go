package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/podoscan/internal/capture"
	"github.com/ayusman/podoscan/internal/config"
	"github.com/ayusman/podoscan/internal/heuristics"
	"github.com/ayusman/podoscan/internal/logger"
	"github.com/ayusman/podoscan/internal/server"
	"github.com/ayusman/podoscan/internal/session"
	"github.com/ayusman/podoscan/internal/store"
	"github.com/ayusman/podoscan/internal/tracing"
	"github.com/ayusman/podoscan/internal/tray"
	"github.com/ayusman/podoscan/internal/upload"
	"github.com/ayusman/podoscan/internal/vision"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting podoscan")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Tracing (off unless an endpoint is configured)
	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	// Store
	dataDir, err := resolveDataDir(cfg.DataDir)
	fatalOnErr(err, "create data directory")
	st, err := store.New(filepath.Join(dataDir, "podoscan.db"))
	fatalOnErr(err, "init store")
	defer st.Close()

	uploader := newUploader(ctx, cfg.Upload, log)

	capturer, err := session.New(session.Config{
		Sources: [2]capture.Source{
			capture.NewCamera(cfg.LeftCameraID, cfg.FrameWidth, cfg.FrameHeight),
			capture.NewCamera(cfg.RightCameraID, cfg.FrameWidth, cfg.FrameHeight),
		},
		CaptureDir:    cfg.CaptureDir,
		FolderPrefix:  cfg.FolderPrefix,
		FPS:           cfg.FPS,
		Analyzer:      analyzerConfig(cfg),
		Uploader:      uploader,
		UploadTimeout: cfg.Upload.Timeout,
		Store:         st,
		Logger:        log.Named("session"),
	})
	fatalOnErr(err, "create capturer")

	// Rendering consumer
	feed := server.NewFeed(log.Named("feed"))
	go feed.Run(ctx, capturer.Views())

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		log.Info("serving static files", zap.String("dir", webDir))
	}

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.New(server.Config{
			StaticDir: webDir,
			Store:     st,
			Control:   capturer,
			Feed:      feed,
			Logger:    log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			cancel()
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- capturer.Run(ctx)
		cancel()
	}()

	if cfg.Tray {
		t := tray.New()
		t.OnCapture(func() (string, error) {
			out, err := capturer.Capture(ctx)
			if err != nil {
				return "", err
			}
			return out.Folder, nil
		})
		t.OnDashboard(func() { openBrowser(dashboardURL(cfg.HTTPAddr), log) })
		t.OnQuit(capturer.Quit)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// Blocks on the main goroutine until the menu quits.
		t.Run()
	}
	<-ctx.Done()

	// Shutdown
	capturer.Quit()
	err = <-runErr
	capturer.WaitUploads()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)

	if err != nil {
		log.Error("capture loop failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
	log.Info("podoscan stopped")
}

// newUploader builds the MinIO sink wrapped in the retry policy, or Discard
// when uploads are disabled.
func newUploader(ctx context.Context, cfg config.UploadConfig, log *zap.Logger) upload.Uploader {
	if !cfg.Enabled {
		log.Info("uploads disabled")
		return upload.Discard
	}

	sink, err := upload.NewMinIO(upload.MinIOConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
	})
	fatalOnErr(err, "create minio client")

	// An unreachable bucket is not fatal; each upload records its own failure.
	if err := sink.EnsureBucket(ctx); err != nil {
		log.Warn("bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}

	return upload.NewRetrying(sink, cfg.MaxAttempts, cfg.BaseDelay, log.Named("upload"))
}

func analyzerConfig(cfg *config.Config) vision.AnalyzerConfig {
	return vision.AnalyzerConfig{
		Params: vision.Params{
			BlurKernel: cfg.Preprocess.BlurKernel,
			BlockSize:  cfg.Preprocess.BlockSize,
			BiasC:      cfg.Preprocess.BiasC,
			Adaptive:   vision.AdaptiveMethod(cfg.Preprocess.Adaptive),
		},
		Heuristics: heuristics.Config{
			ArchHeightDivisor:   cfg.Heuristics.ArchHeightDivisor,
			FlatDivisor:         cfg.Heuristics.FlatDivisor,
			CavusDivisor:        cfg.Heuristics.CavusDivisor,
			FasciaRatio:         cfg.Heuristics.FasciaRatio,
			MetatarsalThreshold: uint8(cfg.Heuristics.MetatarsalThreshold),
		},
	}
}

// resolveDataDir returns dir, or ~/.podoscan when dir is empty, creating it.
func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(homeDir, ".podoscan")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.podoscan/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".podoscan", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, log *zap.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("failed to open browser", zap.String("url", url), zap.Error(err))
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		fmt.Fprintln(os.Stderr, msg+": "+err.Error())
		os.Exit(1)
	}
}
