// Command widgetbridge serves data-app pages with embedded anywidget widgets.
package main

import (
	"fmt"
	"os"

	"github.com/livetemplate/widgetbridge/cmd/widgetbridge/commands"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = commands.ServeCommand(args)
	case "frontend":
		err = commands.FrontendCommand(args)
	case "version":
		fmt.Printf("widgetbridge version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("widgetbridge - anywidget widgets in re-running data-app pages")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  widgetbridge serve [flags]       Start the host page server")
	fmt.Println("  widgetbridge frontend [flags]    Serve the anywidget component frontend")
	fmt.Println("  widgetbridge version             Show version")
	fmt.Println("  widgetbridge help                Show this help")
	fmt.Println()
	fmt.Println("Serve flags:")
	fmt.Println("  -c, --config FILE   Config file (default: ./widgetbridge.yaml if present)")
	fmt.Println("  -p, --port N        Listen port (default: 8501)")
	fmt.Println("      --host H        Listen host (default: localhost)")
	fmt.Println("      --embedded      Serve the component frontend in-process")
	fmt.Println("  -w, --watch         Reload widget sources from widgets.dir on change")
	fmt.Println("      --debug         Verbose logging")
	fmt.Println()
	fmt.Println("Frontend flags:")
	fmt.Println("  -p, --port N        Listen port (default: 3001)")
	fmt.Println("      --host H        Listen host (default: localhost)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  widgetbridge frontend &          # Component frontend on :3001")
	fmt.Println("  widgetbridge serve               # Pages on :8501")
	fmt.Println("  widgetbridge serve --embedded    # Single process")
}
