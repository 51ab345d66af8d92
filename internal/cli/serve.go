package cli

import (
	"context"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matzehuels/parcelgrid/internal/server"
	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/notify"
)

// Environment variables read by serve. Flags take precedence over them,
// and they take precedence over the config file.
const (
	envAddr       = "PARCELGRID_ADDR"
	envDocument   = "PARCELGRID_DOCUMENT"
	envStatic     = "PARCELGRID_STATIC_DIR"
	envRequestLog = "PARCELGRID_REQUEST_LOG"
	envOrigins    = "PARCELGRID_ALLOWED_ORIGINS"
)

const defaultEnvFile = ".env"

// serveCommand creates the serve command that runs the editor backend.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		document   string
		static     string
		requestLog string
		origins    []string
		envFile    string
		flags      pipelineFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the plot editor, document saves and the lead form",
		Long: `Serve the plot editor, document saves and the lead form.

Endpoints:
  GET  /                 static files of the editor and site (--static)
  GET  /plotsData.json   the current document
  POST /save-plots       replace the document with the request body
  POST /send-request     record a lead and notify the office
  GET  /api/rows         rows report
  GET  /api/classify     per-parcel classification
  POST /api/align        align the document (?dry_run=true to preview)

Leads are appended to the request log and mailed when SMTP_HOST, SMTP_USER,
SMTP_PASS and SMTP_TO are set. Variables are also read from a .env file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			cfg, opts, err := c.options(cmd, &flags)
			if err != nil {
				return err
			}

			sc := cfg.Server
			sc.Options = opts
			set := cmd.Flags().Changed
			sc.Addr = pick(set("addr"), addr, envAddr, sc.Addr)
			sc.StaticDir = pick(set("static"), static, envStatic, sc.StaticDir)
			sc.RequestLog = pick(set("request-log"), requestLog, envRequestLog, sc.RequestLog)
			if set("allowed-origin") {
				sc.AllowedOrigins = origins
			} else if v := os.Getenv(envOrigins); v != "" {
				sc.AllowedOrigins = strings.Split(v, ",")
			}

			doc := pick(set("document"), document, envDocument, documentURI(nil, cfg))
			return c.runServe(cmd.Context(), sc, doc)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().StringVarP(&document, "document", "d", defaultDocument, "document path or store URI")
	cmd.Flags().StringVar(&static, "static", "", "directory of static files to serve at /")
	cmd.Flags().StringVar(&requestLog, "request-log", notify.DefaultRequestLog, "file leads are appended to")
	cmd.Flags().StringSliceVar(&origins, "allowed-origin", nil, "CORS origin allowed to call the API (repeatable, default *)")
	cmd.Flags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file with SMTP settings")
	flags.register(cmd)

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg server.Config, document string) error {
	st, err := c.openStore(ctx, document)
	if err != nil {
		return err
	}
	defer c.closeStore(st)

	notifier, err := c.leadNotifier()
	if err != nil {
		return err
	}

	cfg.SetDefaults()
	printInfo("Serving %s on %s", st.Location(), cfg.Addr)
	if cfg.StaticDir != "" {
		printDetail("static files from %s", cfg.StaticDir)
	}
	printDetail("notifying %s", notifier.Name())

	return server.New(cfg, st, notifier, c.Logger).ListenAndServe(ctx)
}

// leadNotifier logs every lead and mails it when SMTP is configured.
func (c *CLI) leadNotifier() (notify.Notifier, error) {
	smtpCfg, err := notify.SMTPConfigFromEnv(os.Getenv)
	if err != nil {
		return nil, err
	}
	sinks := notify.Multi{notify.NewLogNotifier(c.Logger)}
	if smtpCfg.Configured() {
		sinks = append(sinks, notify.NewSMTPNotifier(smtpCfg))
	} else {
		c.Logger.Warn("SMTP not configured, leads are not mailed")
	}
	return sinks, nil
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing default file is ignored.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "load env file %s", path)
	}
	return nil
}

// pick returns the flag value when the flag was set, else the environment
// variable when non-empty, else fallback.
func pick(flagSet bool, flagValue, env, fallback string) string {
	if flagSet {
		return flagValue
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}
