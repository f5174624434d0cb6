package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/livetemplate/widgetbridge/internal/assets"
	"github.com/livetemplate/widgetbridge/internal/server"
)

// defaultFrontendPort matches the default component.url.
const defaultFrontendPort = 3001

type frontendOptions struct {
	host string
	port int
}

func parseFrontendArgs(args []string) (frontendOptions, error) {
	opts := frontendOptions{host: "localhost", port: defaultFrontendPort}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--port", "-p", "--host":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", arg)
			}
			val := args[i+1]
			i++
			if arg == "--host" {
				opts.host = val
				continue
			}
			port, err := strconv.Atoi(val)
			if err != nil || port < 0 || port > 65535 {
				return opts, fmt.Errorf("invalid port: %s", val)
			}
			opts.port = port
		default:
			return opts, fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return opts, nil
}

// frontendHandler serves the bundled anywidget frontend at the root path.
func frontendHandler() http.Handler {
	files := http.FileServer(http.FS(assets.FrontendFS()))
	return server.FrontendHeadersMiddleware()(server.WithCompression(files))
}

// FrontendCommand implements the frontend command: it serves the component
// frontend on its own port, the way a separately started dev server would.
func FrontendCommand(args []string) error {
	opts, err := parseFrontendArgs(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(opts.host, strconv.Itoa(opts.port))
	fmt.Printf("🧩 anywidget component frontend\n\n")
	fmt.Printf("🌐 Serving at http://%s\n", addr)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           frontendHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return listenUntilDone(ctx, httpServer, nil)
}
