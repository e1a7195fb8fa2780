package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/core-tools/hsu-unitmaster/pkg/logging"
	"github.com/core-tools/hsu-unitmaster/pkg/master"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type flagOptions struct {
	ConfigFile    string `long:"config" description:"path to the master configuration file"`
	RunDuration   int    `long:"run-duration" description:"duration in seconds to run the master (debug feature)"`
	LogCollection bool   `long:"log-collection" description:"enable unit log collection"`
	ShowConfig    bool   `long:"show-config" description:"print a summary of the configuration and exit"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-server , ", module)
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	if opts.ConfigFile == "" {
		fmt.Println("Config file is required")
		os.Exit(1)
	}

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Printf("Logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	sugar := zapLogger.Sugar()

	sugar.Infof("opts: %+v", opts)

	masterLogger := logging.NewLogger(
		logPrefix("unitmaster"), logging.LogFuncs{
			Debugf: sugar.Debugf,
			Infof:  sugar.Infof,
			Warnf:  sugar.Warnf,
			Errorf: sugar.Errorf,
		})

	if opts.ShowConfig {
		if err := master.ValidateConfigFile(opts.ConfigFile); err != nil {
			sugar.Errorf("Configuration is invalid: %v", err)
			os.Exit(1)
		}
		config, err := master.LoadConfigFromFile(opts.ConfigFile)
		if err != nil {
			sugar.Errorf("Failed to load config: %v", err)
			os.Exit(1)
		}
		encoded, err := json.MarshalIndent(master.GetConfigSummary(config), "", "  ")
		if err != nil {
			sugar.Errorf("Failed to encode config summary: %v", err)
			os.Exit(1)
		}
		fmt.Println(string(encoded))
		return
	}

	sugar.Infof("Starting...")

	err = master.Run(opts.RunDuration, opts.ConfigFile, opts.LogCollection, masterLogger)
	if err != nil {
		sugar.Errorf("Master runner failed: %v", err)
		os.Exit(1)
	}
}
