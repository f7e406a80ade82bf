package main

import (
	"fmt"
	"log"
	"os"

	"github.com/andesco/splitproxy/handlers"
	"github.com/andesco/splitproxy/pkg/splitlib"

	"github.com/akamensky/argparse"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"golang.org/x/term"
)

var version = "dev"

func main() {
	parser := argparse.NewParser("splitproxy", "Forwards PDF uploads to a PDF splitting service")

	portEnv := os.Getenv("PORT")
	if portEnv == "" {
		portEnv = "8080"
	}
	port := parser.String("p", "port", &argparse.Options{
		Required: false,
		Default:  portEnv,
		Help:     "Port the webserver will listen on",
	})

	configPath := parser.String("c", "config", &argparse.Options{
		Required: false,
		Default:  os.Getenv("CONFIG"),
		Help:     "Path to a YAML config file",
	})

	upstream := parser.String("u", "upstream", &argparse.Options{
		Required: false,
		Help:     "URL of the PDF splitting service (overrides config and UPSTREAM_URL)",
	})

	timeout := parser.Int("t", "timeout", &argparse.Options{
		Required: false,
		Default:  -1,
		Help:     "Upstream timeout in seconds, 0 for none (overrides config and HTTP_TIMEOUT)",
	})

	propagateStatus := parser.Flag("s", "propagate-status", &argparse.Options{
		Required: false,
		Help:     "Answer errors with their HTTP status instead of 200",
	})

	showVersion := parser.Flag("v", "version", &argparse.Options{
		Required: false,
		Help:     "Print version and exit",
	})

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := splitlib.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	if *upstream != "" {
		cfg.UpstreamURL = *upstream
	}
	if *timeout >= 0 {
		cfg.Timeout = *timeout
	}
	if *propagateStatus {
		cfg.PropagateStatus = true
	}

	splitter, err := splitlib.NewSplitter(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "splitproxy " + version,
		BodyLimit:             cfg.BodyLimit(),
		DisableStartupMessage: !term.IsTerminal(int(os.Stdout.Fd())),
		ErrorHandler:          handlers.ErrorHandler(splitter),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	if os.Getenv("LOG_REQUESTS") != "false" {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	app.Get("/", handlers.Form)
	app.Post(handlers.SplitRoute, handlers.SplitPDF(splitter))

	log.Printf("INFO: forwarding /api/split to %s (timeout %ds, propagate status %t)",
		cfg.UpstreamURL, cfg.Timeout, cfg.PropagateStatus)
	log.Fatal(app.Listen(":" + *port))
}
