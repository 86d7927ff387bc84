package main

import (
	"os"
	"strings"

	"github.com/morsekb/firmware-core/internal/cmd"
	"github.com/morsekb/firmware-core/internal/configpaths"
	"github.com/morsekb/firmware-core/internal/log"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

// CLI is the root Kong command set: run boots the keyboard core,
// flash-tool inspects/repairs a storage image offline, config
// scaffolds a config file for either. Adapted from teacher
// cmd/viiper/viiper.go's config.CLI shape.
type CLI struct {
	Run       cmd.Run           `cmd:"" help:"Boot the keyboard core"`
	FlashTool cmd.FlashTool     `cmd:"" name:"flash-tool" help:"Inspect or repair a storage image offline"`
	Config    cmd.ConfigCommand `cmd:"" help:"Generate a configuration template"`

	Log struct {
		Level   string `help:"Log level: trace, debug, info, warn, error" enum:"trace,debug,info,warn,error" default:"info" env:"KBCORE_LOG_LEVEL"`
		File    string `help:"Also write logs to this file (console output then goes to stderr only)" env:"KBCORE_LOG_FILE"`
		RawFile string `help:"Write raw HID/Vial report traces to this file" env:"KBCORE_LOG_RAW_FILE"`
	} `embed:"" prefix:"log."`

	ConfigFile string `help:"Path to a config file (json/yaml/toml)" name:"config" env:"KBCORE_CONFIG"`
}

func main() {
	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("kbcore"),
		kong.Description("Mechanical keyboard firmware core"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(cli.Log.Level, cli.Log.File)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	var rawLogger log.RawLogger
	if cli.Log.RawFile != "" {
		f, err := os.OpenFile(cli.Log.RawFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open raw log file", "file", cli.Log.RawFile, "error", err)
			rawLogger = log.NewRaw(nil)
		} else {
			rawLogger = log.NewRaw(f)
			closeFiles = append(closeFiles, f)
		}
	} else if cli.Log.Level == "trace" {
		rawLogger = log.NewRaw(os.Stdout)
	} else {
		rawLogger = log.NewRaw(nil)
	}

	ctx.Bind(logger)
	ctx.BindTo(rawLogger, (*log.RawLogger)(nil))

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if v := os.Getenv("KBCORE_CONFIG"); v != "" {
		return v
	}
	return ""
}
