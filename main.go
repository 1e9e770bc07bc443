// sweeptrace - live V/I sweep plotter for serial instruments
// Reads V1,I1,V2,I2 frames from a serial port, keeps a bounded sweep history and
// charts any channel against any other in the terminal, a PNG file or a browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sweeptrace/internal/config"
	"sweeptrace/internal/console"
	"sweeptrace/internal/export"
	"sweeptrace/internal/logger"
	"sweeptrace/internal/mirror"
	"sweeptrace/internal/render"
	"sweeptrace/internal/serialport"
	"sweeptrace/internal/session"
	"sweeptrace/internal/version"
)

const consoleLogFile = "sweeptrace.log"

// Command line flag variables
var (
	cfgFile     string // Configuration file path
	verbose     bool   // Enable debug logging
	showVersion bool   // Print build information and exit
	port        string // Serial port to open at startup
	baudRate    int    // Serial baud rate
	capacity    int    // History samples kept
	xAxis       string // Initial x selector
	yAxis       string // Initial y selector
	exportDir   string // CSV export directory
	useConsole  bool   // Full-screen terminal view
	useChart    bool   // PNG chart output
	useWeb      bool   // Websocket live view
)

// rootCmd runs a live session
var rootCmd = &cobra.Command{
	Use:   "sweeptrace",
	Short: "Live V/I sweep plotter for serial instruments",
	Long: `sweeptrace reads comma-separated V1,I1,V2,I2 frames from a serial instrument and
plots a selectable channel pair as the sweep progresses.

Console keys:
  ` + console.Help,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.Get().Info("sweeptrace"))
			return
		}
		if err := runSweeptrace(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// portsCmd lists the serial endpoints
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	Run: func(cmd *cobra.Command, args []string) {
		ports, err := serialport.NewTransport().List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return
		}
		for _, p := range ports {
			fmt.Println(p)
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "serial port to open at startup")
	rootCmd.Flags().IntVar(&baudRate, "baud", serialport.DefaultBaudRate, "serial baud rate")
	rootCmd.Flags().IntVar(&capacity, "capacity", 100, "history samples kept, current point excluded")
	rootCmd.Flags().StringVar(&xAxis, "x-axis", "V1", "x axis selector (V1, I1, V2, I2, optionally prefixed with -)")
	rootCmd.Flags().StringVar(&yAxis, "y-axis", "I1", "y axis selector")
	rootCmd.Flags().StringVar(&exportDir, "export-dir", "./exports", "CSV export directory")
	rootCmd.Flags().BoolVar(&useConsole, "console", true, "full-screen terminal view")
	rootCmd.Flags().BoolVar(&useChart, "chart", false, "write the chart to a PNG file")
	rootCmd.Flags().BoolVar(&useWeb, "web", false, "serve the live chart over websocket")

	viper.BindPFlag("serial.port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("serial.baud_rate", rootCmd.Flags().Lookup("baud"))
	viper.BindPFlag("buffer.capacity", rootCmd.Flags().Lookup("capacity"))
	viper.BindPFlag("axes.x", rootCmd.Flags().Lookup("x-axis"))
	viper.BindPFlag("axes.y", rootCmd.Flags().Lookup("y-axis"))
	viper.BindPFlag("export.dir", rootCmd.Flags().Lookup("export-dir"))
	viper.BindPFlag("render.console", rootCmd.Flags().Lookup("console"))
	viper.BindPFlag("render.chart.enabled", rootCmd.Flags().Lookup("chart"))
	viper.BindPFlag("render.web.enabled", rootCmd.Flags().Lookup("web"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(portsCmd)
}

// initConfig reads in .env, the config file and SWEEPTRACE_* environment variables
func initConfig() {
	if err := godotenv.Load(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Loaded .env\n")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SWEEPTRACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// controlFunc lets renderers built before the session forward controls to it
type controlFunc func(action, value string) error

func (f controlFunc) Control(action, value string) error {
	return f(action, value)
}

// runSweeptrace is the main application logic
func runSweeptrace() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// termbox owns the terminal, so logs must go to a file
	logOutput := cfg.Logging.File
	if cfg.Render.Console && (logOutput == "" || logOutput == "stderr" || logOutput == "stdout") {
		logOutput = consoleLogFile
	}
	log := logger.GetLogger()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, logOutput, cfg.Logging.MaxAgeDays); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			log.Info("received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	sinks := []export.Sink{export.NewFileSink(cfg.Export.Dir)}
	if cfg.Export.S3.Enabled {
		s3Sink, err := export.NewS3Sink(ctx, cfg.Export.S3)
		if err != nil {
			return fmt.Errorf("failed to set up S3 export: %w", err)
		}
		sinks = append(sinks, s3Sink)
	}

	var sess *session.Session
	control := controlFunc(func(action, value string) error {
		return sess.Control(action, value)
	})

	var (
		renderers render.Multi
		term      *console.Console
		chartFile *render.ChartFile
		hub       *render.Hub
	)
	if cfg.Render.Console {
		term = console.New(control)
		renderers = append(renderers, term)
	}
	if cfg.Render.Chart.Enabled {
		chartFile = render.NewChartFile(cfg.Render.Chart)
		renderers = append(renderers, chartFile)
	}
	if cfg.Render.Web.Enabled {
		hub = render.NewHub(control)
		renderers = append(renderers, hub)
	}

	var observers []session.SampleObserver
	var publisher *mirror.Publisher
	if cfg.Mirror.Redis.Enabled {
		publisher = mirror.NewPublisher(cfg.Mirror.Redis)
		observers = append(observers, publisher)
	}

	sess = session.New(cfg, session.Options{
		Transport: serialport.NewTransport(),
		Renderer:  renderers,
		Exporter:  export.NewExporter(sinks...),
		Observers: observers,
	})

	if !cfg.Render.Console {
		fmt.Printf("sweeptrace %s starting...\n", version.Get().Short())
		fmt.Printf("Axes: %s vs %s, capacity %d\n", cfg.Axes.X, cfg.Axes.Y, cfg.Buffer.Capacity)
		if cfg.Render.Chart.Enabled {
			fmt.Printf("Chart: %s\n", cfg.Render.Chart.Path)
		}
		if cfg.Render.Web.Enabled {
			fmt.Printf("Web view: ws://%s/ws\n", cfg.Render.Web.Listen)
		}
	}

	var wg sync.WaitGroup
	if publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Run(ctx)
		}()
	}
	if hub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hub.Serve(ctx, cfg.Render.Web.Listen); err != nil {
				log.WithError(err).Error("web view stopped")
				cancel()
			}
		}()
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- sess.Run(ctx)
	}()

	sess.Submit(func(s *session.Session) {
		if _, err := s.ListPorts(); err != nil {
			log.WithError(err).Warn("failed to list serial ports")
		}
		if cfg.Serial.Port != "" {
			if err := s.Connect(""); err != nil {
				log.WithError(err).WithFields(logger.Fields{"port": cfg.Serial.Port}).Error("initial connect failed")
			}
		}
	})

	if term != nil {
		if err := term.Run(ctx); err != nil {
			log.WithError(err).Error("console failed")
		}
		cancel()
	} else {
		fmt.Printf("Running, press Ctrl+C to stop.\n")
		<-ctx.Done()
	}

	var errs []error
	if err := <-runErr; err != nil {
		errs = append(errs, err)
	}
	wg.Wait()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if chartFile != nil {
		if err := chartFile.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if !cfg.Render.Console {
		fmt.Printf("Stopped.\n")
	}
	return nil
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
