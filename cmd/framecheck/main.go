package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/park285/chesstp/internal/protocol"
	"github.com/park285/chesstp/internal/rules"
)

// framecheck decodes frames, one per argument or one per stdin line, or
// encodes the frame a short game would send.
func main() {
	play := flag.String("play", "", "comma separated moves from the start position; prints the frame of the last one")
	quit := flag.String("quit", "", "print a Quit frame with this reason")
	flag.Parse()

	os.Exit(run(*play, *quit, flag.Args(), os.Stdin, os.Stdout, os.Stderr))
}

func run(play, quit string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	switch {
	case play != "":
		frame, err := encodeGame(strings.Split(play, ","))
		if err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s\n", frame)
		return 0
	case quit != "":
		frame, err := protocol.Encode(protocol.Quit{Reason: quit})
		if err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s\n", frame)
		return 0
	}

	frames := args
	if len(frames) == 0 {
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
				frames = append(frames, line)
			}
		}
		if err := sc.Err(); err != nil {
			fmt.Fprintf(stderr, "read stdin: %v\n", err)
			return 1
		}
	}

	failed := 0
	for _, f := range frames {
		msg, err := protocol.Decode([]byte(f))
		if err != nil {
			failed++
			fmt.Fprintf(stdout, "ERR  %v\n", err)
			continue
		}
		fmt.Fprintf(stdout, "OK   %s\n", describe(msg))
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func encodeGame(moves []string) ([]byte, error) {
	g := rules.NewGame()
	var last protocol.Move
	played := 0
	for _, mv := range moves {
		mv = strings.TrimSpace(mv)
		if mv == "" {
			continue
		}
		m, err := g.Play(mv)
		if err != nil {
			return nil, err
		}
		last = m
		played++
	}
	if played == 0 {
		return nil, errors.New("no moves given")
	}
	return protocol.Encode(last)
}

func describe(msg protocol.Message) string {
	switch m := msg.(type) {
	case protocol.Move:
		promo := ""
		if m.Promotion != protocol.NoPieceKind {
			promo = "=" + m.Promotion.String()
		}
		return fmt.Sprintf("move %s-%s%s outcome=%s board=%s", m.From, m.To, promo, m.Outcome.Code(), protocol.EncodeBoard(&m.Board))
	case protocol.Quit:
		return fmt.Sprintf("quit reason=%q", m.Reason)
	default:
		return fmt.Sprintf("%T", msg)
	}
}
