package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"taigent/internal/server"
)

// chatCmd starts the interactive chat
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat (type exit or quit to leave)",
	RunE:  runChat,
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	youStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	botStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, appOptions{requireModel: true, withExecutor: true})
	if err != nil {
		return err
	}
	defer a.Close()

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Taiga Assistant"))
	fmt.Fprintln(out, hintStyle.Render(fmt.Sprintf("%d operations available. Type exit or quit to leave.", a.registry.Count())))
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, youStyle.Render("you › "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, hintStyle.Render("Goodbye."))
			return nil
		}

		res, err := a.executor.Process(ctx, server.WithProjectContext(line, cfg.Agent.DefaultProjectID))
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintln(out, botStyle.Render("taigent"))
		if err != nil {
			fmt.Fprintln(out, errStyle.Render(res.Text()))
		} else {
			printMarkdown(out, renderer, res.Response)
		}
		fmt.Fprintln(out)
	}
}

func printMarkdown(out io.Writer, renderer *glamour.TermRenderer, text string) {
	if renderer != nil {
		if rendered, err := renderer.Render(text); err == nil {
			fmt.Fprint(out, rendered)
			return
		}
	}
	fmt.Fprintln(out, text)
}
