package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/systemstart/envsecrets/pkg/api"
	"github.com/systemstart/envsecrets/pkg/logging"
	"github.com/systemstart/envsecrets/pkg/processing"
	"github.com/systemstart/envsecrets/pkg/secrets"
	"github.com/systemstart/envsecrets/pkg/workflow"
)

var version = "dev"

const (
	_ = iota
	exitLoggingSetupFailed
	exitDotenvError
	exitConfigurationInvalid
	exitSyncFailed
)

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

var (
	envFile        string
	workflowPath   string
	stepName       string
	skipPatterns   stringList
	lineTemplate   string
	fragmentOutput string
	apiURL         string
	requestTimeout time.Duration
	dryRun         bool
	loggingType    string
	logLevel       string
	showVersion    bool
)

func init() {
	flag.StringVar(
		&envFile,
		"env-file",
		api.DefaultEnvFile,
		"env file listing the variables to publish")
	flag.StringVar(
		&workflowPath,
		"workflow",
		"",
		"workflow file to patch (default $"+api.EnvWorkflowPath+")")
	flag.StringVar(
		&stepName,
		"step-name",
		api.DefaultStepName,
		"name of the jobs.build step whose run command is replaced")
	flag.Var(
		&skipPatterns,
		"skip",
		"glob of variable names not to publish (repeatable)")
	flag.StringVar(
		&lineTemplate,
		"line-template",
		workflow.DefaultLineTemplate,
		"template for one line of the generated run command")
	flag.StringVar(
		&fragmentOutput,
		"fragment-output",
		"",
		"file to write the run command to when no workflow file is set")
	flag.StringVar(
		&apiURL,
		"api-url",
		api.DefaultAPIURL,
		"GitHub API base URL")
	flag.DurationVar(
		&requestTimeout,
		"timeout",
		api.DefaultRequestTimeout,
		"timeout for each API request")
	flag.BoolVar(
		&dryRun,
		"dry-run",
		false,
		"patch the workflow without publishing secrets")
	flag.StringVar(
		&loggingType,
		"logging-type",
		"tint",
		"logging type: json, text or tint")
	flag.StringVar(
		&logLevel,
		"log-level",
		"info",
		"logging level: debug, info, warn, error")
	flag.BoolVar(
		&showVersion,
		"version",
		false,
		"print version and exit")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := logging.Initialize(os.Stderr, loggingType, logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitLoggingSetupFailed)
	}

	includeEnv()
	settings := loadSettings()

	result, err := processing.Run(context.Background(), settings, os.LookupEnv, newStore(settings))
	if err != nil {
		slog.Error("sync failed", "error", err)
		os.Exit(exitSyncFailed)
	}

	slog.Info("done", "variables", len(result.Names), "published", result.Published)
}

func includeEnv() {
	err := godotenv.Load(envFile)
	if err != nil {
		slog.Error("failed to load env file", "filename", envFile, "error", err)
		os.Exit(exitDotenvError)
	}
	slog.Info("using env file", "filename", envFile)
}

func loadSettings() api.Settings {
	settings := api.LoadSettings(api.Settings{
		WorkflowPath:   workflowPath,
		FragmentOutput: fragmentOutput,
		EnvFile:        envFile,
		StepName:       stepName,
		LineTemplate:   lineTemplate,
		Skip:           skipPatterns,
		APIURL:         apiURL,
		RequestTimeout: requestTimeout,
		DryRun:         dryRun,
	}, os.LookupEnv)

	if err := settings.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(exitConfigurationInvalid)
	}
	return settings
}

func newStore(settings api.Settings) secrets.Store {
	if settings.DryRun {
		return nil
	}
	return secrets.NewClient(settings.APIURL, settings.Token, settings.RequestTimeout)
}
