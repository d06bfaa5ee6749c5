package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/presensia/facegate/pkg/config"
	"github.com/presensia/facegate/pkg/logging"
)

const version = "0.1.0"

// Command represents a CLI command.
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(args []string) error
}

var (
	cfg      *config.Config
	commands map[string]*Command
)

func init() {
	commands = map[string]*Command{
		"enroll": {
			Name:        "enroll",
			Description: "Register a face (guided five-position capture)",
			Usage:       "facegate enroll <name>",
			Run:         cmdEnroll,
		},
		"add-face": {
			Name:        "add-face",
			Description: "Capture one extra embedding for a registered face",
			Usage:       "facegate add-face <name>",
			Run:         cmdAddFace,
		},
		"recognize": {
			Name:        "recognize",
			Description: "Recognize the face in front of the camera",
			Usage:       "facegate recognize",
			Run:         cmdRecognize,
		},
		"list": {
			Name:        "list",
			Description: "List registered faces",
			Usage:       "facegate list [query]",
			Run:         cmdList,
		},
		"remove": {
			Name:        "remove",
			Description: "Remove a registered face",
			Usage:       "facegate remove <name>",
			Run:         cmdRemove,
		},
		"clear": {
			Name:        "clear",
			Description: "Remove all registered faces",
			Usage:       "facegate clear",
			Run:         cmdClear,
		},
		"config": {
			Name:        "config",
			Description: "Show current configuration",
			Usage:       "facegate config",
			Run:         cmdConfig,
		},
		"version": {
			Name:        "version",
			Description: "Show version information",
			Usage:       "facegate version",
			Run:         cmdVersion,
		},
		"help": {
			Name:        "help",
			Description: "Show help information",
			Usage:       "facegate help [command]",
			Run:         cmdHelp,
		},
	}
}

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	args := flag.Args()

	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	cfg.ExpandPaths()

	logLevel := cfg.Logging.Level
	if *debug {
		logLevel = "debug"
	}
	if err := logging.Init(logLevel, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not initialize file logging: %v\n", err)
	}

	logging.Debugf("FaceGate v%s starting", version)

	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.Run(args[1:]); err != nil {
		logging.WithError(err).Errorf("Command '%s' failed", cmdName)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("FaceGate - on-device face registration and recognition")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Usage: facegate [options] <command> [arguments]")
	fmt.Println("\nOptions:")
	fmt.Println("  -config <file>   Path to configuration file")
	fmt.Println("  -debug           Enable debug logging")
	fmt.Println("\nCommands:")
	for _, name := range []string{"enroll", "add-face", "recognize", "list", "remove", "clear", "config", "version", "help"} {
		cmd := commands[name]
		fmt.Printf("  %-12s %s\n", cmd.Name, cmd.Description)
	}
	fmt.Println("\nExamples:")
	fmt.Println("  facegate enroll alice       # Register 'alice'")
	fmt.Println("  facegate recognize          # Identify the current face")
	fmt.Println("\nRun 'facegate help <command>' for more information on a command.")
}

func cmdVersion(args []string) error {
	fmt.Printf("FaceGate v%s\n", version)
	return nil
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", args[0])
	}

	fmt.Printf("Command: %s\n", cmd.Name)
	fmt.Printf("Description: %s\n", cmd.Description)
	fmt.Printf("Usage: %s\n", cmd.Usage)

	switch cmd.Name {
	case "enroll":
		fmt.Println("\nEnrollment captures five head positions in order:")
		fmt.Println("  center, up, down, left, right")
		fmt.Println("Each position needs 3 good frames (auto-advance), or at")
		fmt.Println("least 2 before it can be skipped with Enter.")
	case "config":
		fmt.Println("\nConfiguration locations:")
		fmt.Println("  System: /etc/facegate/facegate.yaml")
		fmt.Println("  User:   ~/.config/facegate/facegate.yaml")
	}

	return nil
}
