package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zabari/chatspeaker/internal/api"
	"github.com/zabari/chatspeaker/internal/buffer"
	"github.com/zabari/chatspeaker/internal/chat"
	"github.com/zabari/chatspeaker/internal/config"
	"github.com/zabari/chatspeaker/internal/coordinator"
	"github.com/zabari/chatspeaker/internal/display"
	"github.com/zabari/chatspeaker/internal/filter"
	"github.com/zabari/chatspeaker/internal/kick"
	"github.com/zabari/chatspeaker/internal/message"
	"github.com/zabari/chatspeaker/internal/recorder"
	"github.com/zabari/chatspeaker/internal/tiktok"
	"github.com/zabari/chatspeaker/internal/tts"
	"github.com/zabari/chatspeaker/internal/twitch"
	"github.com/zabari/chatspeaker/internal/uploader"
	"github.com/zabari/chatspeaker/internal/youtube"
)

func main() {
	log.Println("Chatspeaker starting...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	events := make(chan message.Event, 256)

	adapters, err := buildAdapters(cfg, events)
	if err != nil {
		log.Fatalf("Failed to build platform adapters: %v", err)
	}

	scheduler, err := buildScheduler(cfg)
	if err != nil {
		log.Fatalf("Failed to build speech engine: %v", err)
	}

	buf := buffer.New(cfg.Buffer.Size)
	pipeline := coordinator.New(adapters, policyFromConfig(cfg), buf, scheduler, events)

	var wg sync.WaitGroup

	// Console feed
	feed := make(chan message.Event, 64)
	pipeline.AddSink(feed)
	wg.Add(1)
	go func() {
		defer wg.Done()
		display.NewPrinter().Run(feed)
	}()

	// Transcript recorder and S3 archive
	if cfg.Recorder.Enabled {
		record := make(chan message.Event, 256)
		pipeline.AddSink(record)
		files := make(chan string, 100)

		rec := recorder.New(cfg.Recorder.OutputDir, cfg.Recorder.RotateMinutes, cfg.Recorder.RotateMegabytes)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.Start(ctx, record, files); err != nil && err != context.Canceled {
				log.Printf("Recorder error: %v", err)
			}
		}()

		if cfg.S3.Enabled {
			up, err := buildUploader(ctx, cfg)
			if err != nil {
				log.Fatalf("Failed to create uploader: %v", err)
			}
			if err := up.ScanExisting(ctx, cfg.Recorder.OutputDir); err != nil {
				log.Printf("Warning: leftover transcript scan failed: %v", err)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := up.Start(ctx, files); err != nil && err != context.Canceled {
					log.Printf("Uploader error: %v", err)
				}
			}()
		}
	}

	// HTTP status and control surface
	apiServer := api.New(cfg.API.Addr, pipeline, scheduler, buf)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()

	// Connect platforms and run the pipeline
	if err := pipeline.Start(ctx); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	for platform, connected := range pipeline.Status() {
		log.Printf("Platform %s: connected=%v", platform, connected)
	}

	runDone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(runDone)
		if err := pipeline.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Pipeline error: %v", err)
		}
	}()

	log.Println("All components started successfully")

	<-sigChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	pipeline.Stop()
	cancel()

	// Close the console feed only after the pipeline loop has stopped
	// fanning out events.
	select {
	case <-runDone:
	case <-shutdownCtx.Done():
	}
	close(feed)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All components stopped gracefully")
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded, forcing exit")
	}

	log.Println("Chatspeaker stopped")
}

// buildAdapters constructs one adapter per enabled platform, all
// feeding the shared event channel.
func buildAdapters(cfg *config.Config, events chan<- message.Event) ([]chat.Adapter, error) {
	var adapters []chat.Adapter

	if cfg.Platforms.Twitch.Enabled {
		tw := cfg.Platforms.Twitch
		if tw.Username != "" && tw.OAuth != "" {
			adapters = append(adapters, twitch.NewAuthenticated(tw.Channel, tw.Username, tw.OAuth, events))
		} else {
			adapters = append(adapters, twitch.New(tw.Channel, events))
		}
	}

	if cfg.Platforms.YouTube.Enabled {
		yt := cfg.Platforms.YouTube
		videoID, err := youtube.ExtractVideoID(yt.Video)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, youtube.New(yt.APIKey, videoID, events))
	}

	if cfg.Platforms.Kick.Enabled {
		kc := cfg.Platforms.Kick
		if kc.ChatroomID != 0 {
			adapters = append(adapters, kick.NewWithChatroomID(kc.Channel, kc.ChatroomID, events))
		} else {
			adapters = append(adapters, kick.New(kc.Channel, events))
		}
	}

	if cfg.Platforms.TikTok.Enabled {
		tk := cfg.Platforms.TikTok
		adapters = append(adapters, tiktok.New(tk.Username, tk.SessionFile, tk.BridgeURL, events))
	}

	return adapters, nil
}

// buildScheduler wires the speech backends the configured engine needs.
func buildScheduler(cfg *config.Config) (*tts.Scheduler, error) {
	opts := tts.Options{
		AnnounceUsername: *cfg.TTS.AnnounceUsername,
		Voice:            cfg.TTS.Voice,
		HebrewVoice:      cfg.TTS.HebrewVoice,
		SegmentDelay:     time.Duration(cfg.TTS.SegmentDelayMS) * time.Millisecond,
		ItemDelay:        time.Duration(cfg.TTS.ItemDelayMS) * time.Millisecond,
	}

	var local tts.LocalSpeaker
	var remote tts.RemoteSpeaker

	needLocal := cfg.TTS.Engine == "local" || cfg.TTS.Engine == "hybrid"
	needRemote := cfg.TTS.Engine == "kokoro" || cfg.TTS.Engine == "hybrid"

	if needLocal {
		speaker, err := tts.NewExecSpeaker(cfg.TTS.SpeakerCommand, cfg.TTS.Volume, cfg.TTS.Rate, cfg.TTS.Pitch)
		if err != nil {
			return nil, err
		}
		local = speaker
	}
	if needRemote {
		player, err := tts.NewExecPlayer(cfg.TTS.PlayerCommand)
		if err != nil {
			return nil, err
		}
		remote = tts.NewKokoroClient(cfg.TTS.Kokoro.ServerURL, cfg.TTS.Kokoro.Voice, cfg.TTS.Kokoro.Speed, player)
	}

	switch cfg.TTS.Engine {
	case "kokoro":
		opts.Mode = tts.ModeRemote
	case "local":
		opts.Mode = tts.ModeLocal
	default:
		opts.Mode = tts.ModeHybrid
	}

	return tts.NewScheduler(local, remote, opts), nil
}

func buildUploader(ctx context.Context, cfg *config.Config) (*uploader.Uploader, error) {
	if cfg.S3.AccessKeyID != "" {
		return uploader.NewWithStaticCredentials(
			ctx,
			cfg.S3.Bucket,
			cfg.S3.Region,
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			cfg.Uploader.DeleteAfterUpload,
			cfg.Uploader.MaxRetries,
		)
	}
	return uploader.New(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.Uploader.DeleteAfterUpload, cfg.Uploader.MaxRetries)
}

func policyFromConfig(cfg *config.Config) filter.Policy {
	return filter.Policy{
		ExcludeUsers:    cfg.Filters.ExcludeUsers,
		ExcludeCommands: *cfg.Filters.ExcludeCommands,
		ExcludeLinks:    *cfg.Filters.ExcludeLinks,
		OnlyMentions:    cfg.Filters.OnlyMentions,
		MentionTarget:   cfg.Filters.MentionTarget,
	}
}
