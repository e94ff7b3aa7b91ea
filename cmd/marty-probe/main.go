// Command marty-probe sends commands to a running emulator (or a real robot) and prints the replies.
//
//	marty-probe -url ws://127.0.0.1:8080 battery motor/3 traj/wave
//	marty-probe -json '{"cmdName":"subscription"}'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jcdorr003/marty-emulator/internal/ricserial"
	"github.com/jcdorr003/marty-emulator/internal/ws"
	"github.com/jcdorr003/marty-emulator/pkg/log"
)

func main() {
	urlFlag := flag.String("url", "ws://127.0.0.1:8080", "Emulator WebSocket URL")
	jsonFlag := flag.String("json", "", "Send this JSON document as a JSON command")
	attemptsFlag := flag.Int("attempts", 3, "Connection attempts before giving up")
	timeoutFlag := flag.Duration("timeout", 10*time.Second, "Overall timeout")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := log.New(*debugFlag, "")
	defer logger.Sync()

	var cmds []ricserial.Command
	if *jsonFlag != "" {
		var doc any
		if err := json.Unmarshal([]byte(*jsonFlag), &doc); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -json document: %v\n", err)
			os.Exit(2)
		}
		cmds = append(cmds, ricserial.JSON{Data: doc})
	}
	for _, path := range flag.Args() {
		cmds = append(cmds, ricserial.Rest{Path: path})
	}
	if len(cmds) == 0 {
		fmt.Fprintln(os.Stderr, "usage: marty-probe [-url URL] [-json DOC] PATH...")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	client, err := ws.Dial(ctx, *urlFlag, *attemptsFlag, logger)
	if err != nil {
		logger.Fatalw("Failed to connect", "url", *urlFlag, "error", err)
	}
	failed := false
	for _, cmd := range cmds {
		resp, err := client.Do(ctx, cmd)
		if err != nil {
			logger.Errorw("Command failed", "kind", cmd.Kind(), "error", err)
			failed = true
			break
		}
		fmt.Printf("%-6s %s\n", resp.Kind, render(resp))
		if resp.Kind == ricserial.RespError {
			failed = true
		}
	}

	_ = client.Close()
	if failed {
		os.Exit(1)
	}
}

func render(resp ricserial.Response) string {
	switch resp.Kind {
	case ricserial.RespOK:
		return "OK"
	case ricserial.RespJSON:
		b, err := json.Marshal(resp.Data)
		if err != nil {
			return fmt.Sprint(resp.Data)
		}
		return string(b)
	default:
		return resp.Text
	}
}
