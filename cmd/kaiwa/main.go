// Package main is the Kaiwa CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/civicgo/kaiwa/internal/classifier"
	"github.com/civicgo/kaiwa/internal/codec"
	"github.com/civicgo/kaiwa/internal/config"
	"github.com/civicgo/kaiwa/internal/dataset"
	"github.com/civicgo/kaiwa/internal/models"
	"github.com/civicgo/kaiwa/internal/server"
	"github.com/civicgo/kaiwa/internal/store"
	"github.com/civicgo/kaiwa/internal/trainer"
	"github.com/civicgo/kaiwa/internal/watcher"
	"github.com/civicgo/kaiwa/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kaiwa/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "kaiwa server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "train":
		runTrain()
	case "predict":
		runPredict()
	case "load":
		runLoad()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kaiwa version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (bundle reloads, prediction details, etc.)")
	noSeed := fs.Bool("no-seed", false, "skip seeding the built-in example set into an empty store")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if !*noSeed {
		if err := dataset.Seed(context.Background(), components.Examples); err != nil {
			logger.Warn("seeding example store failed", zap.Error(err))
		}
	}

	// Warm the model cache if a bundle is already on disk.
	if err := components.Engine.LoadModel(context.Background()); err != nil {
		logger.Info("no model loaded at startup; train or load one", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.New(cfg.Storage.BundlePath, func() {
			if err := components.Engine.LoadModel(context.Background()); err != nil {
				logger.Warn("bundle reload failed", zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start bundle watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Trainer,
		components.Examples,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runTrain() {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = train locally without a server)")
	quiet := fs.Bool("quiet", false, "suppress per-epoch progress output")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		if err := trainViaHTTP(*serverURL, *quiet); err != nil {
			fmt.Fprintf(os.Stderr, "Training failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	var failed bool
	for event := range components.Trainer.Run(context.Background()) {
		printProgress(event, *quiet)
		if event.Status == models.StatusFailed {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func trainViaHTTP(serverURL string, quiet bool) error {
	resp, err := http.Post(serverURL+"/api/v1/train", "application/json", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	scanner := bufio.NewScanner(resp.Body)
	var failed bool
	for scanner.Scan() {
		var event models.TrainProgress
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return fmt.Errorf("decode progress event: %w", err)
		}
		printProgress(event, quiet)
		if event.Status == models.StatusFailed {
			failed = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read progress stream: %w", err)
	}
	if failed {
		return fmt.Errorf("training run failed")
	}
	return nil
}

func printProgress(event models.TrainProgress, quiet bool) {
	switch event.Status {
	case models.StatusEpoch, models.StatusConverged:
		if quiet {
			return
		}
		fmt.Printf("[%3d%%] epoch %d  loss %.4f  val_loss %.4f  acc %.2f  lr %.5f\n",
			event.ProgressPercent, event.Epoch, event.Loss, event.ValLoss, event.Accuracy, event.LearningRate)
	case models.StatusFailed:
		fmt.Fprintf(os.Stderr, "Training failed: %s\n", event.Error)
	case models.StatusCompleted:
		fmt.Println("Training completed; model bundle saved.")
	default:
		if !quiet {
			fmt.Printf("[%3d%%] %s\n", event.ProgressPercent, event.Status)
		}
	}
}

func runPredict() {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = predict locally without a server)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kaiwa predict [flags] <text>")
		os.Exit(1)
	}
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fmt.Println("Usage: kaiwa predict [flags] <text>")
		os.Exit(1)
	}

	var prediction *models.Prediction
	if *serverURL != "" {
		p, err := predictViaHTTP(*serverURL, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Prediction failed: %v\n", err)
			os.Exit(1)
		}
		prediction = p
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		prediction = components.Engine.Respond(context.Background(), text)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(prediction); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if prediction.Intent != "" {
			fmt.Printf("intent:      %s\n", prediction.Intent)
			fmt.Printf("confidence:  %.4f\n", prediction.Confidence)
		}
		fmt.Printf("response:    %s\n", prediction.Response)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func predictViaHTTP(serverURL, text string) (*models.Prediction, error) {
	body, err := json.Marshal(models.PredictRequest{Text: text})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var prediction models.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &prediction, nil
}

func runLoad() {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Post(*serverURL+"/api/v1/model/load", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Load failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		VocabularySize int `json:"vocabulary_size"`
		Intents        int `json:"intents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Model loaded: %d vocabulary entries, %d intents\n", out.VocabularySize, out.Intents)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kaiwa import [flags] <file.xlsx|file.csv|file.json>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	examples, err := store.NewExampleStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open example store", zap.Error(err))
	}
	defer examples.Close()

	result, err := dataset.ImportFile(context.Background(), examples, path)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d example(s) and %d response(s) from %s\n", result.Examples, result.Responses, path)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Examples       int64  `json:"examples"`
	ModelLoaded    bool   `json:"model_loaded"`
	VocabularySize int    `json:"vocabulary_size"`
	Intents        int    `json:"intents"`
	Training       bool   `json:"training"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()

		ctx := context.Background()
		count, err := components.Examples.CountExamples(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count examples failed: %v\n", err)
			os.Exit(1)
		}
		loaded := components.Engine.LoadModel(ctx) == nil
		vocab, intents := components.Engine.ModelInfo()
		status = statusResponse{
			Examples:       count,
			ModelLoaded:    loaded,
			VocabularySize: vocab,
			Intents:        intents,
		}
		diskBytes, err := store.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BundlePath)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("examples:          %d\n", status.Examples)
		fmt.Printf("model_loaded:      %t\n", status.ModelLoaded)
		if status.ModelLoaded {
			fmt.Printf("vocabulary_size:   %d\n", status.VocabularySize)
			fmt.Printf("intents:           %d\n", status.Intents)
		}
		fmt.Printf("training:          %t\n", status.Training)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:  %d\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Examples *store.ExampleStore
	Blobs    store.BlobStore
	Codec    *codec.Codec
	Engine   *classifier.Engine
	Trainer  *trainer.Trainer
}

func (c *Components) Close() {
	if c.Examples != nil {
		_ = c.Examples.Close()
	}
	if c.Blobs != nil {
		_ = c.Blobs.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	examples, err := store.NewExampleStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize example store: %w", err)
	}
	blobs, err := store.NewDiskStore(cfg.Storage.BundlePath)
	if err != nil {
		_ = examples.Close()
		return nil, fmt.Errorf("failed to initialize bundle store: %w", err)
	}
	c := codec.New(blobs, logger)
	engine := classifier.New(c, logger)
	tr := trainer.New(examples, c, cfg.Training, logger)

	return &Components{
		Examples: examples,
		Blobs:    blobs,
		Codec:    c,
		Engine:   engine,
		Trainer:  tr,
	}, nil
}

func printUsage() {
	fmt.Println(`kaiwa - Intent classification engine for the self-service portal chatbot

Usage:
  kaiwa server [flags]            Start the HTTP server
  kaiwa train [flags]             Train a new model from stored examples
  kaiwa predict [flags] <text>    Classify a query and print the reply
  kaiwa load [flags]              Tell a running server to reload the bundle
  kaiwa import [flags] <file>     Import training examples (xlsx, csv, json)
  kaiwa status [flags]            Show store and model status
  kaiwa version                   Show version
  kaiwa help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kaiwa/config.yaml)
  --debug            Enable debug logging (bundle reloads, prediction details, etc.)
  --no-seed          Skip seeding the built-in example set into an empty store

Train Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to train locally.
  --quiet            Suppress per-epoch progress output

Predict Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for local inference.
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  kaiwa server
  kaiwa train
  kaiwa predict "what are your office hours"
  kaiwa predict --output json "reset my password"
  kaiwa import examples.xlsx
  kaiwa status --output json`)
}
