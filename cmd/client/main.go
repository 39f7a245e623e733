package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kirillkom/patent-assistant-client/internal/bootstrap"
	"github.com/kirillkom/patent-assistant-client/internal/config"
	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/core/usecase"
	"github.com/kirillkom/patent-assistant-client/internal/observability/logging"
)

func main() {
	noChat := flag.Bool("no-chat", false, "exit after printing the analysis")
	clearCache := flag.Bool("clear-cache", false, "forget the cached analysis and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [document.pdf]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintln(flag.CommandLine.Output(), "Without a document the most recent cached analysis is shown.")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("patent-client", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.MetricsPort != "" {
		shutdown := serveMetrics(app, cfg.MetricsPort)
		defer shutdown()
	}

	if *clearCache {
		app.Cache.Clear(ctx)
		fmt.Println("Cached analysis cleared.")
		return
	}

	if err := run(ctx, app, flag.Arg(0), !*noChat, os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, domain.UserMessage(err))
		}
		app.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, app *bootstrap.App, path string, chat bool, in io.Reader, out io.Writer) error {
	lifecycle := app.Lifecycle

	var (
		resolved *domain.ResolvedAnalysis
		err      error
	)
	if path == "" {
		resolved, err = lifecycle.Loader.Resolve(ctx, "")
	} else {
		resolved, err = uploadAndAnalyze(ctx, lifecycle, path, out)
	}
	if err != nil {
		return err
	}

	printAnalysis(out, resolved)
	if !chat {
		return nil
	}
	return converse(ctx, lifecycle.Conversation(resolved), in, out)
}

func uploadAndAnalyze(ctx context.Context, lifecycle *usecase.DocumentLifecycle, path string, out io.Writer) (*domain.ResolvedAnalysis, error) {
	file, err := fileRef(path)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Uploader.SelectFile(file); err != nil {
		return nil, err
	}
	if pages := lifecycle.Uploader.State().Pages; pages > 0 {
		fmt.Fprintf(out, "Selected %s (%d pages, %s)\n", file.Name, pages, formatSize(file.Size))
	} else {
		fmt.Fprintf(out, "Selected %s (%s)\n", file.Name, formatSize(file.Size))
	}

	lastTick := -1
	return lifecycle.Run(ctx, usecase.LifecycleCallbacks{
		OnProgress: func(percent int) {
			if percent/10 != lastTick/10 || percent == 100 {
				lastTick = percent
				fmt.Fprintf(out, "\rUploading... %3d%%", percent)
			}
		},
		OnUploaded: func(documentID string) {
			fmt.Fprintf(out, "\nUpload successful. Document ID: %s\n", documentID)
		},
		OnStage: func(stage domain.ProcessingStage) {
			fmt.Fprintf(out, "Stage %d: %s\n", stage, stage.Label())
			for _, step := range domain.PipelineSteps(stage) {
				fmt.Fprintf(out, "  - %s: %s\n", step.Title, step.Status)
			}
		},
	})
}

func fileRef(path string) (domain.FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.FileRef{}, &domain.ValidationError{Field: "file", Title: "Invalid file", Message: path + " is a directory."}
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("open %s: %w", path, err)
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	f.Close()

	mimeType := http.DetectContentType(head[:n])
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	return domain.FileRef{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Size:     info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func converse(ctx context.Context, session *usecase.ConversationSession, in io.Reader, out io.Writer) error {
	for _, msg := range session.Messages() {
		printMessage(out, msg)
	}
	if questions := session.SuggestedQuestions(); len(questions) > 0 {
		fmt.Fprintln(out, "Suggested questions:")
		for _, q := range questions {
			fmt.Fprintf(out, "  * %s\n", q)
		}
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := scanner.Text()
		if strings.TrimSpace(text) == "/quit" {
			return nil
		}

		before := len(session.Messages())
		if err := session.Send(ctx, text); err != nil {
			if domain.IsKind(err, domain.ErrInvalidInput) {
				continue
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgs := session.Messages()
		for _, msg := range msgs[min(before+1, len(msgs)):] {
			printMessage(out, msg)
		}
	}
}

func serveMetrics(app *bootstrap.App, port string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		app.Logger.Info("metrics_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("metrics_server_failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			app.Logger.Warn("metrics_shutdown_failed", "error", err)
		}
	}
}
