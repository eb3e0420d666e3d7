package main

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"gopkg.in/op/go-logging.v1"

	"github.com/thought-machine/credo_langserver/src/cli"
	"github.com/thought-machine/credo_langserver/src/metrics"
	"github.com/thought-machine/credo_langserver/src/process"
	"github.com/thought-machine/credo_langserver/tools/credo_langserver/lsp"
)

var log = logging.MustGetLogger("credo_langserver")

var opts = struct {
	Usage        string
	Verbosity    cli.Verbosity `short:"v" long:"verbosity" default:"warning" description:"Verbosity of output (higher number = more output)"`
	LogFile      string        `long:"log_file" description:"File to echo full logging output to"`
	LogFileLevel cli.Verbosity `long:"log_file_level" default:"debug" description:"Log level for file output"`

	Mode string `short:"m" long:"mode" default:"stdio" choice:"stdio" choice:"tcp" description:"Mode of the language server communication"`
	Host string `short:"H" long:"host" default:"127.0.0.1" description:"TCP host to listen on"`
	Port string `short:"p" long:"port" default:"4389" description:"TCP port to listen on"`

	Timeout cli.Duration `long:"timeout" default:"5m" description:"Timeout for each run of Credo"`
	NoWatch bool         `long:"nowatch" description:"Don't watch workspaces for configuration changes; rely on the client to report them"`

	PushGatewayURL cli.URL      `long:"push_gateway_url" description:"Prometheus pushgateway to send metrics to"`
	PushFrequency  cli.Duration `long:"push_frequency" default:"30s" description:"How often to push metrics"`
	PushTimeout    cli.Duration `long:"push_timeout" default:"5s" description:"Timeout on pushing metrics"`
}{
	Usage: `
credo_langserver is a language server that runs the Credo static analyser over Elixir code
and reports its findings as diagnostics.

It speaks the language server protocol over stdio (or TCP), so you can plug it into any editor
that supports LSP. Credo must be a dependency of the Mix project being edited.
`,
}

func main() {
	cli.ParseFlagsOrDie("credo_langserver", &opts)
	cli.InitLogging(opts.Verbosity)
	if opts.LogFile != "" {
		cli.InitFileLogging(opts.LogFile, opts.LogFileLevel, false)
	}
	if opts.PushGatewayURL != "" {
		metrics.Init(opts.PushGatewayURL.String(), time.Duration(opts.PushFrequency), time.Duration(opts.PushTimeout))
		cli.AtExit(metrics.Stop)
	}
	executor := process.New()
	newHandler := func() *lsp.Handler {
		return lsp.NewHandler(executor, time.Duration(opts.Timeout), !opts.NoWatch)
	}
	if opts.Mode == "tcp" {
		if err := serveTCP(net.JoinHostPort(opts.Host, opts.Port), newHandler); err != nil {
			log.Fatalf("%s", err)
		}
	} else {
		log.Info("credo_langserver: reading on stdin, writing on stdout")
		serve(jsonrpc2.NewBufferedStream(stdrwc{}, jsonrpc2.VSCodeObjectCodec{}), newHandler())
	}
	cli.RunAtExit()
}

// serve handles a single connection until it's closed.
func serve(conn jsonrpc2.ObjectStream, handler *lsp.Handler) {
	<-jsonrpc2.NewConn(context.Background(), conn, handler, jsonrpc2.LogMessages(lsp.Logger{})).DisconnectNotify()
	handler.Wait()
	log.Info("connection closed")
}

// serveTCP accepts connections forever, each of which gets its own handler.
func serveTCP(addr string, newHandler func() *lsp.Handler) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer lis.Close()
	log.Notice("credo_langserver: listening on %s", addr)
	for {
		conn, err := lis.Accept()
		if err != nil {
			return err
		}
		log.Info("Accepted connection from %s", conn.RemoteAddr())
		go serve(jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{}), newHandler())
	}
}

// stdrwc is a ReadWriteCloser over stdin & stdout.
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
