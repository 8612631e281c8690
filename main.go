package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auto_linkedin_post_publisher/config"
	"auto_linkedin_post_publisher/discovery"
	"auto_linkedin_post_publisher/draft"
	"auto_linkedin_post_publisher/generator"
	"auto_linkedin_post_publisher/imagegen"
	"auto_linkedin_post_publisher/pipeline"
	"auto_linkedin_post_publisher/publisher"
	"auto_linkedin_post_publisher/search"
	"auto_linkedin_post_publisher/server"
)

var verbose bool

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	serve := flag.Bool("serve", false, "start the HTTP API")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	listTopics := flag.Bool("topics", false, "print suggested topics and exit")
	topic := flag.String("topic", "", "generate a draft for this topic")
	publish := flag.Bool("publish", false, "publish the generated draft")
	textFile := flag.String("text-file", "", "replace the generated text with this file before publishing")
	flag.BoolVar(&verbose, "v", false, "enable info logs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, err := buildPipeline(ctx, cfg)
	if err != nil {
		fail(err)
	}

	// Web server mode
	if *serve {
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		srv, err := server.New(pipe, listen, log.Default())
		if err != nil {
			fail(err)
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		if err := srv.Start(); err != nil {
			fail(err)
		}
		return
	}

	if *listTopics {
		headlines, err := pipe.Suggest(ctx)
		if err != nil {
			fail(err)
		}
		for i, h := range headlines {
			fmt.Printf("%2d. %s", i+1, h.Title)
			if h.Source != "" {
				fmt.Printf(" (%s)", h.Source)
			}
			fmt.Println()
		}
		return
	}

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "--topic is required (or use --serve / --topics)")
		os.Exit(1)
	}

	log.Printf("[cli] generating draft topic=%q", *topic)
	d, err := pipe.Generate(ctx, *topic)
	if err != nil {
		fail(err)
	}
	if *textFile != "" {
		data, err := os.ReadFile(*textFile)
		if err != nil {
			fail(err)
		}
		if d, err = pipe.SetText(string(data)); err != nil {
			fail(err)
		}
	}
	fmt.Println(d.Text)

	if !*publish {
		return
	}
	d, res, err := pipe.Publish(ctx)
	if err != nil {
		fail(err)
	}
	log.Printf("[cli] publish done draft=%s post=%s asset=%s", d.ID, res.PostID, res.AssetURN)
	fmt.Println(res.PostID)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	client := &http.Client{Timeout: cfg.RequestTimeout()}
	logger := log.Default()

	searcher, err := search.New(search.Config{
		APIKey:        cfg.Search.APIKey,
		EngineID:      cfg.Search.EngineID,
		PageSize:      cfg.Search.PageSize,
		MaxQueryChars: cfg.Search.MaxQueryChars,
		CacheSize:     cfg.Search.CacheSize,
		CacheTTL:      cfg.SearchCacheTTL(),
	}, client, verbose, logger)
	if err != nil {
		return nil, err
	}

	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	writer, err := generator.NewWriter(llm, cfg.LLM.MaxChars)
	if err != nil {
		return nil, err
	}

	images, err := imagegen.New(cfg.ImageSettings(), imagegen.Config{
		Model:          cfg.Image.Model,
		Size:           cfg.Image.Size,
		Quality:        cfg.Image.Quality,
		ResponseFormat: cfg.Image.ResponseFormat,
		MaxPromptChars: cfg.Image.MaxPromptChars,
	}, client, verbose, logger)
	if err != nil {
		return nil, err
	}

	authorURN := cfg.LinkedIn.AuthorURN
	if authorURN == "" {
		authorURN, err = publisher.ResolveAuthor(ctx, client, cfg.LinkedIn.BaseURL, cfg.LinkedIn.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("resolve linkedin author (set LINKEDIN_USER_URN to skip): %w", err)
		}
		log.Printf("Resolved LinkedIn author %s", authorURN)
	}
	pub, err := publisher.New(publisher.Config{
		AccessToken: cfg.LinkedIn.AccessToken,
		AuthorURN:   authorURN,
		APIVersion:  cfg.LinkedIn.APIVersion,
		BaseURL:     cfg.LinkedIn.BaseURL,
		Visibility:  cfg.LinkedIn.Visibility,
		Retry:       cfg.RetryPolicy(),
	}, client, verbose, logger)
	if err != nil {
		return nil, err
	}
	pub.OnPhase = func(draftID string, phase publisher.Phase) {
		if verbose {
			log.Printf("[INFO] publish draft=%s phase=%s", draftID, phase)
		}
	}

	p := &pipeline.Pipeline{
		Search:       searcher,
		Writer:       writer,
		Images:       images,
		Publisher:    pub,
		Drafts:       draft.NewManager(),
		Retry:        cfg.RetryPolicy(),
		StageTimeout: cfg.RequestTimeout(),
		Verbose:      verbose,
		Logger:       logger,
	}
	if cfg.Discovery.APIKey != "" {
		p.Topics = discovery.New(discovery.Config{
			APIKey:   cfg.Discovery.APIKey,
			Query:    cfg.Discovery.Query,
			Language: cfg.Discovery.Language,
			SortBy:   cfg.Discovery.SortBy,
			PageSize: cfg.Discovery.PageSize,
			DaysAgo:  cfg.Discovery.DaysAgo,
		}, client, verbose, logger)
	}
	return p, nil
}

func buildLLM(ctx context.Context, cfg *config.Config) (generator.LLMClient, error) {
	settings := cfg.LLMSettings()
	switch settings.Provider {
	case "openai", "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，base_url 已在配置校验时要求。
		return generator.NewOpenAILLMFromConfig(settings)
	case "gemini":
		return generator.NewGeminiLLMFromConfig(ctx, settings)
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, errors.New("llm provider " + settings.Provider + " not supported")
	}
}
