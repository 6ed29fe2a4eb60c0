package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MeKo-Tech/proctex/internal/download"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var downloadCmd = &cobra.Command{
	Use:   "download [url...]",
	Short: "Download images in parallel",
	Long: `Download a list of image URLs into a directory in parallel.

URLs come from the arguments and, with --url-file, from a file with one URL
per line. Failed downloads are skipped; the written paths are printed sorted.`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().String("dir", "./downloads", "Target directory")
	downloadCmd.Flags().String("url-file", "", "File with one URL per line (# starts a comment)")
	downloadCmd.Flags().IntP("workers", "w", 0, "Number of parallel downloads (default: number of CPUs)")
	downloadCmd.Flags().Duration("timeout", 60*time.Second, "Timeout per request")
	downloadCmd.Flags().String("user-agent", download.DefaultUserAgent, "User-Agent header")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"download.dir", "dir"},
		{"download.url_file", "url-file"},
		{"download.workers", "workers"},
		{"download.timeout", "timeout"},
		{"download.user_agent", "user-agent"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, downloadCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	dir := viper.GetString("download.dir")
	urlFile := viper.GetString("download.url_file")
	workers := viper.GetInt("download.workers")
	timeout := viper.GetDuration("download.timeout")
	userAgent := viper.GetString("download.user_agent")

	if logger == nil {
		initLogging()
	}

	urls := append([]string(nil), args...)
	if urlFile != "" {
		fromFile, err := readURLFile(urlFile)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given: pass them as arguments or use --url-file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := &download.Downloader{
		Client:    &http.Client{Timeout: timeout},
		Workers:   workers,
		UserAgent: userAgent,
		Logger:    logger,
	}
	paths, err := d.Download(ctx, urls, dir)
	if err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open url file: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url file: %w", err)
	}
	return urls, nil
}
