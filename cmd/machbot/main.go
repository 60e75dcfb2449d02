package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jwalton/machbot/pkg/agent"
	"github.com/jwalton/machbot/pkg/config"
	"github.com/jwalton/machbot/pkg/llm"
	"github.com/jwalton/machbot/pkg/types"
)

// Version is set at build time via ldflags.
var Version string

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	app, err := agent.NewAgent(cfg)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	// When talking to a native Ollama server, make sure the model exists
	// locally before the first question.
	if ensurer, ok := app.Provider().(llm.ModelEnsurer); ok {
		if err := ensurer.EnsureModel(context.Background(), os.Stdout); err != nil {
			fmt.Printf("Error: %v\n", err)
			fmt.Println("Is the model server running? Try: ollama serve")
			os.Exit(1)
		}
	}

	fmt.Printf("%smachbot%s - ask questions about your machine (model: %s, provider: %s)\n",
		types.ColorGreen, types.ColorReset, app.GetModel(), cfg.Provider)
	fmt.Printf("Tools: %s\n", strings.Join(app.GetRegistry().List(), ", "))
	fmt.Printf("Commands: /q (quit), /c (clear), /model, /usage, /tools\n")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var turnCancel context.CancelFunc
	var lastSigTime time.Time
	var mu sync.Mutex

	go func() {
		for sig := range sigChan {
			mu.Lock()
			if sig == syscall.SIGTERM {
				mu.Unlock()
				fmt.Println("\nGoodbye!")
				os.Exit(0)
			}
			now := time.Now()
			if now.Sub(lastSigTime) < time.Second {
				mu.Unlock()
				fmt.Println("\nGoodbye!")
				os.Exit(0)
			}
			lastSigTime = now
			if turnCancel != nil {
				turnCancel()
				turnCancel = nil
				fmt.Fprintf(os.Stderr, "\n%s[interrupted]%s\n", types.ColorYellow, types.ColorReset)
			}
			mu.Unlock()
		}
	}()

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s> %s", types.ColorBlue, types.ColorReset)
		input, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)

		if input == "" {
			continue
		}

		handled, exit := app.HandleCommand(input)
		if exit {
			return
		}
		if handled {
			continue
		}

		turnCtx, cancel := context.WithCancel(context.Background())
		mu.Lock()
		turnCancel = cancel
		mu.Unlock()

		err = app.ProcessInput(turnCtx, input)
		cancel()

		mu.Lock()
		turnCancel = nil
		mu.Unlock()

		if err != nil {
			if turnCtx.Err() == context.Canceled {
				continue
			}
			fmt.Printf("%sError: %v%s\n", types.ColorYellow, err, types.ColorReset)
		}
	}
}
