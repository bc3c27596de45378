package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/fingers/internal/app"
	"github.com/ayusman/fingers/internal/capture"
	"github.com/ayusman/fingers/internal/config"
	"github.com/ayusman/fingers/internal/detector"
	"github.com/ayusman/fingers/internal/inference"
	"github.com/ayusman/fingers/internal/logging"
	"github.com/ayusman/fingers/internal/overlay"
	"github.com/ayusman/fingers/internal/plugin"
	"github.com/ayusman/fingers/internal/server"
	"github.com/ayusman/fingers/internal/store"
	"github.com/ayusman/fingers/internal/tray"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.IntVar(&cfg.CameraID, "camera", cfg.CameraID, "camera device id")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "palm detection ONNX model")
	flag.StringVar(&cfg.ProfilePath, "profile", cfg.ProfilePath, "model profile YAML (default: built-in)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flag.BoolVar(&cfg.Tray, "tray", cfg.Tray, "show a system tray icon")
	imagePath := flag.String("image", "", "detect hands in an image file and exit")
	outPath := flag.String("out", "", "with -image, write an annotated copy here")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, logFile, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *imagePath != "" {
		err = detectImage(ctx, cfg, log, *imagePath, *outPath)
	} else {
		err = serve(ctx, stop, cfg, log)
	}
	if err != nil {
		log.WithError(err).Error("fingers failed")
		logFile.Close()
		os.Exit(1)
	}
}

// newPipeline builds the detection pipeline from the model profile.
func newPipeline(cfg *config.Config, log logrus.FieldLogger) (*detector.Pipeline, error) {
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	detCfg := profile.Detector(cfg)

	anchors, err := detector.NewAnchorTable(detCfg.Scales, detCfg.ExpectedAnchors)
	if err != nil {
		return nil, err
	}

	engCfg, err := profile.Engine(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := inference.NewONNXEngine(engCfg, log)
	if err != nil {
		return nil, err
	}

	p, err := detector.NewPipeline(detCfg, anchors, engine,
		detector.WithLogger(log),
		detector.WithPreprocess(profile.Input),
	)
	if err != nil {
		engine.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"profile":        profile.Name,
		"anchors":        anchors.Len(),
		"min_confidence": detCfg.MinConfidence,
		"iou_threshold":  detCfg.IoUThreshold,
		"max_hands":      detCfg.MaxDetections,
	}).Info("detection pipeline ready")
	return p, nil
}

// detectImage prints the hands found in one image as JSON.
func detectImage(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, in, out string) error {
	img, err := overlay.Load(in)
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	dets, err := p.DetectImage(ctx, img)
	if err != nil {
		return errors.Wrapf(err, "detect %s", in)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dets); err != nil {
		return err
	}

	if out == "" {
		return nil
	}
	return overlay.Save(out, overlay.DrawImage(img, dets))
}

// serve runs the camera loop and the HTTP server until ctx is done.
func serve(ctx context.Context, stop context.CancelFunc, cfg *config.Config, log *logrus.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return errors.Wrap(err, "create data directory")
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer st.Close()

	plugins := plugin.NewManager(cfg.PluginDir, log)
	if err := plugins.Discover(); err != nil {
		return err
	}

	pipeline, err := newPipeline(cfg, log)
	if err != nil {
		return err
	}

	hub := server.NewHub(log)
	go hub.Run(ctx)
	frames := server.NewFrames()

	var t *tray.Tray
	appCfg := app.Config{
		Camera:            capture.NewCamera(cfg.CameraID),
		Detector:          pipeline,
		Store:             st,
		Plugins:           plugins,
		Executor:          plugin.NewExecutor(cfg.PluginTimeout, log),
		Broadcaster:       hub,
		Frames:            frames,
		Logger:            log,
		LogEvery:          cfg.LogEvery,
		ActivityThreshold: cfg.ActivityThreshold,
	}
	if cfg.Tray {
		t = tray.New(st.Settings().Bool(store.SettingEnabled, true))
		appCfg.Status = t
	}

	svc := app.New(appCfg)
	defer svc.Close()
	if err := svc.LoadSettings(); err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	webDir := cfg.StaticDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		log.WithField("dir", webDir).Info("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Service:   svc,
		Plugins:   plugins,
		Hub:       hub,
		Frames:    frames,
		Logger:    log,
	})

	if t == nil {
		log.WithField("addr", cfg.Addr).Info("fingers listening")
		return srv.Run(ctx, cfg.Addr)
	}

	t.OnToggle(func(enabled bool) {
		svc.SetEnabled(enabled)
		if err := st.Settings().Set(store.SettingEnabled, strconv.FormatBool(enabled)); err != nil {
			log.WithError(err).Warn("save enabled setting")
		}
	})
	t.OnSettings(func() { openBrowser(settingsURL(cfg.Addr), log) })
	t.OnQuit(stop)

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("fingers listening")
		errc <- srv.Run(ctx, cfg.Addr)
		t.Quit()
	}()
	// systray needs the main goroutine.
	t.Run()
	stop()
	return <-errc
}

func settingsURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, log logrus.FieldLogger) {
	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}
	if err := exec.Command(name, url).Start(); err != nil {
		log.WithError(err).WithField("url", url).Warn("open browser")
	}
}

// findWebDir returns the first web directory found next to the working
// directory or in the data directory, or "".
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	p := filepath.Join(dataDir, "web")
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return ""
}
