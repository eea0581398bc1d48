package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/helper"
	"github.com/h20-studio-tech/aipatent/internal/models"
	"github.com/h20-studio-tech/aipatent/internal/rag"
	"github.com/h20-studio-tech/aipatent/internal/server"
	"github.com/h20-studio-tech/aipatent/internal/trace"
)

const defaultConfigPath = "./configs/config.yaml"

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "aipatent",
		Short:         "Document ingestion and retrieval for patent drafting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the config file")

	root.AddCommand(ingestCMD(), searchCMD(), tablesCMD(), dropCMD(), exportCMD(), importCMD(), serveCMD())

	if err := root.ExecuteContext(context.Background()); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	helper.SetupLogger(cfg.Log.Level, cfg.Log.Pretty)

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			log.Error().Str("field", e.Field).Msg(e.Message)
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return cfg, nil
}

func ingestCMD() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Partition, review and index a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			content, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", filePath, err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var bar *progressbar.ProgressBar
			a.filter.OnProgress = func(done, total int) {
				if bar == nil {
					bar = getProgressBar(total, "Reviewing chunks")
				}
				_ = bar.Set(done)
			}

			res, err := a.engine.Ingest(ctx, content, filepath.Base(filePath))
			if bar != nil {
				_ = bar.Finish()
				fmt.Println()
			}
			if err != nil {
				return err
			}

			switch res.Status {
			case rag.StatusAlreadyProcessed:
				color.Yellow("%s is already indexed in table %s, run a search instead", filePath, res.TableName)
			case rag.StatusEmpty:
				color.Yellow("%s produced no usable chunks (%d partitioned, %d failed reviews)", filePath, res.Partitioned, res.Failed)
			default:
				color.Green("indexed %d of %d chunks into table %s (%d failed reviews)",
					res.Stored, res.Partitioned, res.TableName, res.Failed)
			}
			if res.Metadata != nil {
				helper.PrettyPrint(res.Metadata)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "path to the document file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func searchCMD() *cobra.Command {
	var (
		query  string
		target string
		step   string
		answer bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a multi-query search against an indexed document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			genStep, err := models.ParseGenerationStep(step)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if answer {
				_, err := a.engine.Answer(ctx, query, target, func(_ context.Context, chunk []byte) error {
					fmt.Print(string(chunk))
					return nil
				})
				fmt.Println()
				return err
			}

			res, err := a.engine.Query(ctx, query, target, genStep)
			if err != nil {
				return err
			}
			color.Cyan("sub-queries:")
			for _, q := range res.Queries {
				fmt.Printf("  - %s\n", q)
			}
			handles := trace.NewHandles()
			handles.Set(genStep, res.TraceID)
			if res.TraceID != "" {
				color.Cyan("trace id: %s", res.TraceID)
			}
			for s, id := range handles.Snapshot() {
				color.Cyan("%s -> %s", s, id)
			}
			fmt.Println()
			fmt.Print(res.Text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query")
	cmd.Flags().StringVarP(&target, "target", "t", "", "uploaded filename or table name")
	cmd.Flags().StringVar(&step, "step", "", "patent section the search is made for")
	cmd.Flags().BoolVar(&answer, "answer", false, "stream an answer grounded on the retrieved chunks")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func tablesCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List corpus tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			tables, err := st.manager.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tables {
				n, err := st.manager.Count(cmd.Context(), t)
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%d\n", t, n)
			}
			return nil
		},
	}
}

func dropCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a corpus table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.manager.DropTable(cmd.Context(), args[0]); err != nil {
				return err
			}
			color.Green("dropped %s", args[0])
			return nil
		},
	}
}

func exportCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "export <table>",
		Short: "Export a chromem table to an encrypted file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := chromemStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			path, err := st.chromem.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			color.Green("exported %s to %s", args[0], path)
			return nil
		},
	}
}

func importCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import chromem tables from an encrypted export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := chromemStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.chromem.Import(cmd.Context(), args[0]); err != nil {
				return err
			}
			color.Green("imported %s", args[0])
			return nil
		},
	}
}

func chromemStorage(ctx context.Context) (*storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.VectorDB.Backend != config.BackendChromem {
		return nil, errors.New("export and import need the chromem backend")
	}
	return openStorage(ctx, cfg)
}

func serveCMD() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.NewServer(a.engine, &cfg.Server)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Stop(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
