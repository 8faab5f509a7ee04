package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	appcfg "github.com/park285/chesstp/internal/config"
	"github.com/park285/chesstp/internal/history"
	"github.com/park285/chesstp/internal/matchlog"
	"github.com/park285/chesstp/internal/movesource"
	"github.com/park285/chesstp/internal/msgcat"
	"github.com/park285/chesstp/internal/notify"
	"github.com/park285/chesstp/internal/obslog"
	"github.com/park285/chesstp/internal/protocol"
	"github.com/park285/chesstp/internal/rules"
	"github.com/park285/chesstp/internal/session"
	"github.com/park285/chesstp/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const usage = `usage: chesstp [flags] host|join [addr]

  host   wait for a peer on addr and play White
  join   connect to a hosting peer at addr and play Black

addr is host:port for TCP or ws://host:port/path for WebSocket.
`

type options struct {
	role    string
	addr    string
	engine  string
	name    string
	noBoard bool
}

func parseFlags(args []string, cfg *appcfg.AppConfig, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("chesstp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	var o options
	fs.StringVar(&o.engine, "engine", cfg.StockfishPath, "UCI engine binary that plays for you instead of stdin")
	fs.StringVar(&o.name, "name", cfg.PlayerName, "your player name in results")
	fs.BoolVar(&o.noBoard, "no-board", false, "do not print the board after each move")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	rest := fs.Args()
	if len(rest) < 1 || len(rest) > 2 {
		fs.Usage()
		return o, errors.New("expected host or join")
	}
	o.role = strings.ToLower(rest[0])
	if o.role != "host" && o.role != "join" {
		fs.Usage()
		return o, fmt.Errorf("unknown command %q", rest[0])
	}
	o.addr = cfg.Addr
	if len(rest) == 2 {
		o.addr = rest[1]
	}
	return o, nil
}

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	opts, err := parseFlags(os.Args[1:], cfg, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if err := obslog.Init(cfg.Log); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, opts, cat, logger))
}

// backends are the optional stores and the move source, opened concurrently.
type backends struct {
	source  movesource.Source
	engine  *movesource.Engine
	store   *matchlog.Store
	repo    *history.Repository
	webhook *notify.Webhook
}

func (b *backends) close() {
	if b.engine != nil {
		_ = b.engine.Close()
	}
	if b.store != nil {
		_ = b.store.Close()
	}
	if b.repo != nil {
		_ = b.repo.Close()
	}
}

func openBackends(ctx context.Context, cfg *appcfg.AppConfig, opts options, cat *msgcat.Catalog, logger *zap.Logger) (*backends, error) {
	b := &backends{}
	g, gctx := errgroup.WithContext(ctx)

	if opts.engine != "" {
		g.Go(func() error {
			eopt := movesource.EngineOptions{
				Threads:    1,
				HashMB:     cfg.EngineHashMB,
				SkillLevel: cfg.EngineSkill,
				MoveTime:   cfg.EngineMoveTime,
			}
			e, err := movesource.NewEngine(gctx, opts.engine, eopt, logger)
			if err != nil {
				return fmt.Errorf("engine: %w", err)
			}
			b.engine = e
			return nil
		})
	}
	if cfg.RedisURL != "" {
		g.Go(func() error {
			s, err := matchlog.Open(gctx, cfg.RedisURL, cfg.MatchTTL)
			if err != nil {
				return err
			}
			b.store = s
			return nil
		})
	}
	if cfg.DatabaseURL != "" {
		g.Go(func() error {
			r, err := history.Open(gctx, cfg.DatabaseURL, opts.name)
			if err != nil {
				return err
			}
			if err := r.EnsureSchema(gctx); err != nil {
				_ = r.Close()
				return err
			}
			b.repo = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.close()
		return nil, err
	}

	if cfg.WebhookURL != "" {
		wopts := []notify.Option{notify.WithLocalName(opts.name)}
		if token := cfg.WebhookToken; token != "" {
			wopts = append(wopts, notify.WithHeaderProvider(func() map[string]string {
				return map[string]string{"Authorization": "Bearer " + token}
			}))
		}
		b.webhook = notify.NewWebhook(cfg.WebhookURL, wopts...)
	}

	if b.engine != nil {
		b.source = b.engine
	} else {
		b.source = movesource.NewText(os.Stdin, movesource.WithPrompt(os.Stdout, func(g *rules.Game) string {
			return cat.Text("prompt.move", map[string]any{"Color": g.Turn(), "Ply": len(g.MovesUCI()) + 1})
		}))
	}
	return b, nil
}

func connect(ctx context.Context, opts options, cat *msgcat.Catalog, logger *zap.Logger) (net.Conn, error) {
	if opts.role == "join" {
		return transport.Dial(ctx, opts.addr)
	}
	ln, err := transport.Listen(ctx, opts.addr, logger)
	if err != nil {
		return nil, err
	}
	fmt.Println(cat.Text("lobby.waiting", map[string]any{"Addr": ln.Addr()}))
	return ln.Accept(ctx)
}

func run(ctx context.Context, cfg *appcfg.AppConfig, opts options, cat *msgcat.Catalog, logger *zap.Logger) int {
	b, err := openBackends(ctx, cfg, opts, cat, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		return 1
	}
	defer b.close()

	nc, err := connect(ctx, opts, cat, logger)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Println(cat.Text("game.interrupted", nil))
			return 130
		}
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return 1
	}

	color := protocol.White
	if opts.role == "join" {
		color = protocol.Black
	}
	peer := nc.RemoteAddr().String()
	fmt.Println(cat.Text("lobby.connected", map[string]any{"Peer": peer, "Color": color}))

	var connOpts []transport.Option
	connOpts = append(connOpts, transport.WithLogger(logger))
	if !transport.IsWebSocket(opts.addr) && cfg.ReadPoll > 0 {
		connOpts = append(connOpts, transport.WithPoll(cfg.ReadPoll))
	}
	conn := transport.NewConn(nc, connOpts...)
	defer conn.Close()

	scfg := session.Config{
		Color:        color,
		Peer:         peer,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
		OnMove: func(ev session.MoveEvent) {
			if !ev.Local {
				fmt.Println(cat.Text("game.peer_moved", map[string]any{"Move": lastSAN(ev.Game)}))
			}
			if !opts.noBoard {
				fmt.Print(renderBoard(ev.Game, color == protocol.Black))
			}
		},
		OnIllegal: func(input string, _ error) {
			fmt.Println(cat.Text("game.illegal", map[string]any{"Input": input}))
		},
	}
	if b.store != nil {
		scfg.Recorder = b.store
		scfg.Sinks = append(scfg.Sinks, b.store)
	}
	if b.repo != nil {
		scfg.Sinks = append(scfg.Sinks, b.repo)
	}
	if b.webhook != nil {
		scfg.Sinks = append(scfg.Sinks, b.webhook)
	}

	sess := session.New(conn, b.source, scfg)
	if color == protocol.White && !opts.noBoard {
		fmt.Print(renderBoard(sess.Game(), false))
	}

	res, err := sess.Run(ctx)
	return report(res, err, cat)
}

func report(res session.Result, err error, cat *msgcat.Catalog) int {
	switch {
	case err == nil:
		fmt.Println(cat.Text("game.over", map[string]any{"Result": history.ResultToPGN(res.Outcome), "Method": strings.ToLower(res.Method)}))
		return 0
	case errors.Is(err, session.ErrPeerQuit):
		fmt.Println(cat.Text("game.peer_quit", map[string]any{"Reason": res.QuitReason}))
		return 0
	case errors.Is(err, session.ErrDesync):
		fmt.Fprintln(os.Stderr, cat.Text("game.desync", nil))
		return 3
	case errors.Is(err, context.Canceled):
		fmt.Println(cat.Text("game.interrupted", nil))
		return 130
	default:
		fmt.Fprintf(os.Stderr, "session: %v\n", err)
		return 1
	}
}

func lastSAN(g *rules.Game) string {
	moves := g.MovesSAN()
	if len(moves) == 0 {
		return ""
	}
	return moves[len(moves)-1]
}
