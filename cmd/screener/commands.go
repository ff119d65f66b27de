package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/trial-screener/internal/app"
	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/export"
	"github.com/joseph-ayodele/trial-screener/internal/extract"
	"github.com/joseph-ayodele/trial-screener/internal/server"
	"github.com/joseph-ayodele/trial-screener/internal/shell"
	"github.com/joseph-ayodele/trial-screener/internal/utils"
)

func shellCmd(cfg *common.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive screening session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []shell.Option
			if a.Runs != nil {
				opts = append(opts, shell.WithRuns(a.Runs))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "type help for commands")
			return shell.New(a.Controller, out, logger, opts...).Run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

func runCmd(cfg *common.Config, logger *slog.Logger) *cobra.Command {
	var (
		criteriaPath, casePath, pages string
		organize, skipExtract, save   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load both documents, classify once and print the verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var window *extract.PageRange
			if pages != "" {
				sel, err := extract.ParsePageSelection(pages)
				if err != nil {
					return err
				}
				r, ok := extract.RangeFromSelection(sel)
				if !ok {
					return errors.New("--pages selects nothing")
				}
				window = &r
			}

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, ctrl := cmd.Context(), a.Controller
			if err := ctrl.LoadCriteriaDocument(ctx, criteriaPath, window); err != nil {
				return err
			}
			if !skipExtract {
				if err := ctrl.ExtractCriteria(ctx); err != nil {
					return err
				}
			}
			if err := ctrl.LoadCaseDocument(ctx, casePath); err != nil {
				return err
			}
			if organize {
				if err := ctrl.OrganizeCase(ctx); err != nil {
					return err
				}
			}
			res, classifyErr := ctrl.ClassifyCase(ctx)
			if res != nil {
				fmt.Fprintln(cmd.OutOrStdout(), res.Display())
			}
			if save && res != nil {
				if err := saveRun(cmd, a); err != nil {
					return err
				}
			}
			return classifyErr
		},
	}
	cmd.Flags().StringVar(&criteriaPath, "criteria", "", "trial protocol PDF")
	cmd.Flags().StringVar(&pages, "pages", "", "protocol pages to convert, e.g. 3-5")
	cmd.Flags().StringVar(&casePath, "case", "", "patient case PDF")
	cmd.Flags().BoolVar(&organize, "organize", false, "structure the case before classifying")
	cmd.Flags().BoolVar(&skipExtract, "no-extract", false, "classify against the whole converted protocol")
	cmd.Flags().BoolVar(&save, "save", false, "store the verdict in the run store")
	_ = cmd.MarkFlagRequired("criteria")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func saveRun(cmd *cobra.Command, a *app.App) error {
	if a.Runs == nil {
		return errors.New("no run store configured, set STORE_DSN")
	}
	run, err := utils.RunFromSession(a.Controller.Snapshot())
	if err != nil {
		return err
	}
	saved, err := a.Runs.Save(cmd.Context(), run)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", saved.ID)
	return nil
}

func exportCmd(cfg *common.Config, logger *slog.Logger) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write saved verdicts to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Store.DSN == "" {
				return errors.New("no run store configured, set STORE_DSN")
			}
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := export.NewService(a.Runs, logger).ExportRunsXLSX(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", args[0], len(data))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "newest runs to export, 0 for all")
	return cmd
}

func serveCmd(cfg *common.Config, logger *slog.Logger) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one screening session over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var store *server.Store
			if a.Runs != nil {
				store = server.NewStore(a.Runs, logger)
			}
			return server.Serve(cmd.Context(), addr, server.NewScreeningService(a.Controller, store, logger), logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", cfg.Server.GRPCAddr, "listen address")
	return cmd
}

func remoteCmd(cfg *common.Config) *cobra.Command {
	var (
		addr    string
		out     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "remote <method> [key=value...]",
		Short: "Call a running screening daemon",
		Long:  "Methods: " + strings.Join(server.Methods(), ", "),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parsePairs(args[1:])
			if err != nil {
				return err
			}
			cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer func() { _ = cc.Close() }()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			resp, err := server.NewClient(cc).Call(ctx, args[0], req)
			if err != nil {
				return err
			}
			if b64, ok := resp["xlsx"].(string); ok && out != "" {
				data, err := base64.StdEncoding.DecodeString(b64)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				delete(resp, "xlsx")
				resp["written"] = out
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", dialAddr(cfg.Server.GRPCAddr), "daemon address")
	cmd.Flags().StringVar(&out, "out", "", "write an ExportRuns workbook to this file")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "call deadline")
	return cmd
}

// parsePairs turns key=value arguments into a request document. Integers
// and booleans keep their type, and text=@file reads the value from a file.
func parsePairs(args []string) (map[string]any, error) {
	req := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		switch {
		case k == "text" && strings.HasPrefix(v, "@"):
			b, err := os.ReadFile(v[1:])
			if err != nil {
				return nil, err
			}
			req[k] = string(b)
		case k == "text" || k == "path" || k == "pages":
			req[k] = v
		default:
			if n, err := strconv.Atoi(v); err == nil {
				req[k] = n
			} else if b, err := strconv.ParseBool(v); err == nil {
				req[k] = b
			} else {
				req[k] = v
			}
		}
	}
	return req, nil
}

func dialAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "localhost" + listen
	}
	return listen
}
