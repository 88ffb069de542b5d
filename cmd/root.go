package cmd

import (
	"context"
	"fmt"
	"io"
	u "net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/vidgrab/internal/output"
	"github.com/tanq16/vidgrab/internal/scheduler"
	"github.com/tanq16/vidgrab/internal/utils"
)

var (
	workers          int
	timeout          time.Duration
	kaTimeout        time.Duration
	userAgent        string
	proxyURL         string
	proxyUsername    string
	proxyPassword    string
	headers          []string
	retries          int
	retryWait        time.Duration
	debug            bool
	fileLog          bool
	globalHTTPConfig utils.HTTPClientConfig
	logCloser        io.Closer
)

var VidgrabVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "vidgrab",
	Short:   "vidgrab downloads HLS streams and other online video into single local files",
	Version: VidgrabVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closer, err := utils.InitLogger(debug, fileLog)
		if err != nil {
			return fmt.Errorf("error opening log file: %v", err)
		}
		logCloser = closer
		if workers < 1 {
			return fmt.Errorf("--workers must be at least 1")
		}
		if retries < 0 {
			return fmt.Errorf("--retries must not be negative")
		}
		globalHTTPConfig = buildHTTPConfig()
		log.Debug().Str("op", "cmd/root").Msgf("HTTP config: timeout=%s proxy=%q headers=%d", globalHTTPConfig.Timeout, globalHTTPConfig.ProxyURL, len(globalHTTPConfig.Headers))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// buildHTTPConfig folds the network flags into one client config. Credentials embedded in
// the proxy URL win unless they were given explicitly.
func buildHTTPConfig() utils.HTTPClientConfig {
	agent := userAgent
	if agent == "randomize" {
		agent = utils.GetRandomUserAgent()
	}
	proxy, user, pass := proxyURL, proxyUsername, proxyPassword
	if parsedProxy, err := u.Parse(proxy); err == nil && parsedProxy.User != nil && user == "" {
		user = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			pass = password
		}
		parsedProxy.User = nil
		proxy = parsedProxy.String()
	}
	return utils.HTTPClientConfig{
		Timeout:       timeout,
		KATimeout:     kaTimeout,
		ProxyURL:      proxy,
		ProxyUsername: user,
		ProxyPassword: pass,
		UserAgent:     agent,
		Headers:       utils.ParseHeaderArgs(headers),
	}
}

func newJob(jobType, url, outputPath string) utils.Job {
	return utils.Job{
		JobType:          jobType,
		URL:              url,
		OutputPath:       outputPath,
		Retries:          retries,
		RetryWait:        retryWait,
		HTTPClientConfig: globalHTTPConfig,
		Metadata:         make(map[string]any),
	}
}

func runJobs(cmd *cobra.Command, jobs []utils.Job) {
	log.Debug().Str("op", "cmd/root").Msgf("Starting scheduler with %d jobs", len(jobs))
	if err := scheduler.Run(cmd.Context(), jobs, workers); err != nil {
		output.PrintError(err.Error())
		if logCloser != nil {
			logCloser.Close()
		}
		os.Exit(1)
	}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Number of jobs to run in parallel")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", utils.DefaultTimeout, "Per-request timeout for playlists and segments (eg. 5s, 1m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent ('randomize' picks a browser agent)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Referer: https://example.com'); can be specified multiple times")
	rootCmd.PersistentFlags().IntVarP(&retries, "retries", "r", utils.DefaultRetries, "Retries per segment or request after the first attempt")
	rootCmd.PersistentFlags().DurationVar(&retryWait, "retry-wait", 0, "Base wait between retries, multiplied by the attempt number")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&fileLog, "log", false, "Write logs to "+utils.LogFile)

	rootCmd.AddCommand(newHLSCmd())
	rootCmd.AddCommand(newHTTPCmd())
	rootCmd.AddCommand(newYouTubeCmd())
	rootCmd.AddCommand(newS3Cmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
}
