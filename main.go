package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vidgrab/cmd"
	"vidgrab/config"
	"vidgrab/services"
)

func main() {
	var (
		url    string
		file   string
		output string
		server bool
		port   int
	)

	flag.StringVar(&url, "url", "", "Video URL to download")
	flag.StringVar(&file, "file", "", "File containing one video URL per line")
	flag.StringVar(&output, "output", "", "Directory to save videos to")
	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.IntVar(&port, "port", 0, "Port for web server mode (overrides SERVER_PORT)")
	flag.Parse()

	config.LoadDotEnv()

	// Server mode takes precedence
	if server {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
		if port > 0 {
			cfg.Port = port
		}
		if err := cmd.StartWebServer(cfg); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
		return
	}

	if url == "" && file == "" {
		flag.Usage()
		os.Exit(2)
	}
	if url != "" && file != "" {
		log.Fatalf("You can pass only one of -url and -file at a time.")
	}
	if output == "" {
		log.Fatalf("You must provide an -output directory")
	}

	urls := []string{url}
	if file != "" {
		var err error
		urls, err = cmd.ReadURLFile(file)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retriever := services.NewYtdlpRetriever(os.Getenv("YTDLP_PATH"))
	paths, err := cmd.RunBatch(ctx, retriever, urls, output, os.Stdout)
	if err != nil {
		log.Fatalf("Batch download failed after %d of %d videos: %v", len(paths), len(urls), err)
	}
	fmt.Printf("Downloaded %d video(s) to %s\n", len(paths), output)
}
