package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/pipeline"
	"github.com/ppiankov/bsdetector/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes the investigation pipeline over HTTP:

  POST /api/chat         stream an investigation of supplied page text
  POST /api/annotate     inline annotations for a URL (cached per URL)
  GET  /api/report       latest structured report for a URL
  GET  /api/report/html  the same report rendered as HTML
  POST /api/parse        fetch a URL and return its markdown
  POST /api/transform    annotate a URL and mark up the supplied HTML
  GET  /api/events       server-sent agent events
  GET  /metrics          Prometheus metrics

Example:
  bsdetector serve --addr :8080 --store sqlite`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cfg, logger, err := buildService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, logger)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(svc, svc.Bus(), cfg.Server, logger)
	return srv.Run(ctx)
}

// buildService resolves config and wires the pipeline
func buildService(ctx context.Context) (*pipeline.Service, *model.Config, *zerolog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg)

	svc, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init pipeline: %w", err)
	}
	return svc, cfg, logger, nil
}

func closeService(svc *pipeline.Service, logger *zerolog.Logger) {
	if err := svc.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close pipeline")
	}
}
