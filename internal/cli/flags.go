package cli

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/eshaffer321/shopify-compta/internal/application/export"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/config"
)

// DefaultEnd is the end of the export window when -end is not given.
const DefaultEnd = "2050-12-01"

// ExportFlags are the flags of the export command
type ExportFlags struct {
	Start      string
	End        string
	Store      string
	Token      string
	Password   string
	ConfigPath string
	OutputDir  string
	DBPath     string
	DateField  string
	Verbose    bool
	NoProgress bool
}

// DefaultStart is the first day of the month before now.
func DefaultStart(now time.Time) string {
	y, m, _ := now.Date()
	return time.Date(y, m-1, 1, 0, 0, 0, 0, time.UTC).Format(export.DateLayout)
}

// ParseExportFlags parses export flags from args (without the program name).
func ParseExportFlags(args []string, now time.Time, output io.Writer) (*ExportFlags, error) {
	flags := &ExportFlags{}
	fs := flag.NewFlagSet("compta-export", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&flags.Start, "start", DefaultStart(now), "First day to export, YYYY-MM-DD (inclusive)")
	fs.StringVar(&flags.End, "end", DefaultEnd, "Last day of the window, YYYY-MM-DD (exclusive)")
	fs.StringVar(&flags.Store, "store", "", "Store domain, overrides SHOPIFY_STORE")
	fs.StringVar(&flags.Token, "token", "", "Admin API access token, overrides SHOPIFY_ACCESS_TOKEN")
	fs.StringVar(&flags.Password, "password", "", "Admin API password, overrides SHOPIFY_PASSWORD")
	fs.StringVar(&flags.ConfigPath, "config", "", "Configuration file path (default config.yaml, then environment)")
	fs.StringVar(&flags.OutputDir, "out", "", "Output directory for the spreadsheet")
	fs.StringVar(&flags.DBPath, "db", "", "Run ledger database path (empty = no ledger)")
	fs.StringVar(&flags.DateField, "date-field", "", "Timestamp to filter on: created_at or updated_at")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&flags.NoProgress, "no-progress", false, "Disable the progress bar")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return flags, nil
}

// Window parses the date flags into an export window.
func (f *ExportFlags) Window(dateField string) (export.Window, error) {
	start, err := time.Parse(export.DateLayout, f.Start)
	if err != nil {
		return export.Window{}, fmt.Errorf("%w: -start %q is not YYYY-MM-DD", export.ErrInvalidWindow, f.Start)
	}
	end, err := time.Parse(export.DateLayout, f.End)
	if err != nil {
		return export.Window{}, fmt.Errorf("%w: -end %q is not YYYY-MM-DD", export.ErrInvalidWindow, f.End)
	}
	w := export.Window{Start: start, End: end, DateField: dateField}
	return w, w.Validate()
}

// ApplyTo overrides cfg with every flag that was set.
func (f *ExportFlags) ApplyTo(cfg *config.Config) {
	if f.Store != "" {
		cfg.Shopify.Store = f.Store
	}
	if f.Token != "" {
		cfg.Shopify.AccessToken = f.Token
	}
	if f.Password != "" {
		cfg.Shopify.Password = f.Password
	}
	if f.OutputDir != "" {
		cfg.Export.OutputDir = f.OutputDir
	}
	if f.DBPath != "" {
		cfg.Storage.DatabasePath = f.DBPath
	}
	if f.DateField != "" {
		cfg.Export.DateField = f.DateField
	}
	if f.Verbose {
		cfg.Observability.Logging.Level = "debug"
	}
}

// LoadConfig loads path when given, otherwise config.yaml or the environment.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadOrEnv(), nil
	}
	return config.Load(path)
}
