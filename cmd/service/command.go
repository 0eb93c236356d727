package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"midas/core"
	"midas/factories"
)

type Options struct {
	ConfigPath string
	Addr       string
	LogLevel   string
}

func (o *Options) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.ConfigPath, "config", "c", "", "path to a TOML config file (defaults apply when empty)")
	flagSet.StringVar(&o.LogLevel, "log-level", "", "override the configured log level")
}

// setup loads the config, installs the process logger and builds the app.
func (o *Options) setup() (*factories.App, func(), error) {
	cfg, err := factories.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.Addr != "" {
		cfg.Server.Addr = o.Addr
	}

	logger, logCloser := factories.BuildLogger(cfg.Log)
	core.SetLogger(logger)

	app, err := factories.NewApp(cfg, logger)
	if err != nil {
		if logCloser != nil {
			logCloser.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		if err := app.Close(); err != nil {
			logger.With(map[string]any{"error": err}).Warn("shutdown cleanup failed")
		}
		if logCloser != nil {
			logCloser.Close()
		}
	}
	return app, cleanup, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func NewCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the voice assistant HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "override the listen address")
	return cmd
}

func Run(opts *Options) error {
	app, cleanup, err := opts.setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	if err := app.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.WatchKnowledge(gctx); err != nil {
			app.Logger.With(map[string]any{"error": err}).Warn("knowledge watcher stopped, use /api/reload-knowledge instead")
		}
		return nil
	})
	g.Go(func() error { return app.Server().Run(gctx, app.Config.Server.Addr) })
	err = g.Wait()
	app.Logger.Info("shutting down")
	return err
}

func NewRetrieveCommand() *cobra.Command {
	opts := &Options{}
	var topK int
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "print the knowledge context retrieved for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := opts.setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if topK <= 0 {
				topK = app.Config.Knowledge.TopK
			}
			query := strings.Join(args, " ")
			printRetrieval(app.Retriever.Retrieve(query, topK), query, app.Retriever.Count())
			return nil
		},
	}
	opts.AddFlags(cmd.Flags())
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to return (defaults to the configured top_k)")
	return cmd
}

func printRetrieval(retrieved, query string, loaded int) {
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Printf("%s %s %s\n", boldCyan("query:"), query, faint(fmt.Sprintf("(%d chunks loaded)", loaded)))
	if retrieved == "" {
		color.Yellow("no matching knowledge")
		return
	}
	for _, line := range strings.Split(retrieved, "\n") {
		if strings.HasPrefix(line, "[From ") && strings.HasSuffix(line, "]") {
			fmt.Println(boldGreen(line))
			continue
		}
		fmt.Println(line)
	}
}

func NewWarmupCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "initialize and warm up the model servers, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := opts.setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext()
			defer stop()

			if err := app.Models.Init(ctx); err != nil {
				return err
			}
			app.Models.Warmup(ctx, app.Logger)
			color.Green("models ready")
			return nil
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}
