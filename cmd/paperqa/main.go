package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/pkg/pipeline"
	"github.com/xhad/paperqa/server"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "paperqa",
		Short:        "Take notes on academic papers and answer questions about them",
		Long:         "paperqa downloads a PDF paper, summarizes it into notes, indexes it for semantic search and answers questions grounded in the paper.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(createServeCommand(&configPath))
	rootCmd.AddCommand(createNotesCommand(&configPath))
	rootCmd.AddCommand(createAskCommand(&configPath))
	rootCmd.AddCommand(createChatCommand(&configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
}

func createServeCommand(configPath *string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if port != "" {
				a.config.Server.Port = port
			}

			srv := server.NewWithConfig(a.pipeline, server.Config{
				Port:      a.config.Server.Port,
				WebSocket: a.config.Server.WebSocket,
			})
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Server port (overrides config)")
	return cmd
}

func createNotesCommand(configPath *string) *cobra.Command {
	var name string
	var pagesToDelete string

	cmd := &cobra.Command{
		Use:   "notes <paper-url>",
		Short: "Take notes on a paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			notes, err := a.takeNotes(cmd.Context(), args[0], name, pagesToDelete)
			if err != nil {
				return err
			}
			printNotes(notes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name of the paper")
	cmd.Flags().StringVarP(&pagesToDelete, "delete-pages", "d", "", "Comma-separated pages to drop, e.g. \"1,12,13\"")
	return cmd
}

func createAskCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <paper-url> <question>",
		Short: "Answer a question about a paper whose notes were taken",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			answer, err := a.ask(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printAnswer(answer)
			return nil
		},
	}
	return cmd
}

func createChatCommand(configPath *string) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "chat <paper-url>",
		Short: "Take notes on a paper, then ask questions interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			paperURL := args[0]

			notes, err := a.takeNotes(ctx, paperURL, name, "")
			if err != nil {
				return err
			}
			printNotes(notes)

			color.Cyan("\nAsk about the paper (type 'exit' to quit)")

			scanner := bufio.NewScanner(os.Stdin)
			userPrompt := color.New(color.FgGreen).PrintfFunc()

			for {
				userPrompt("\nYou: ")
				if !scanner.Scan() {
					break
				}

				question := strings.TrimSpace(scanner.Text())
				if strings.ToLower(question) == "exit" {
					break
				}
				if question == "" {
					continue
				}

				answer, err := a.ask(ctx, paperURL, question)
				if err != nil {
					color.Red("Error: %v\n", err)
					continue
				}
				printAnswer(answer)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name of the paper")
	return cmd
}

func (a *app) takeNotes(ctx context.Context, paperURL, name, pagesToDelete string) ([]models.Note, error) {
	spinner := getSpinner("📄 Reading paper...")
	defer spinner.Finish()

	return a.pipeline.TakeNotes(ctx, pipeline.TakeNotesRequest{
		PaperURL:      paperURL,
		PaperName:     name,
		PagesToDelete: pagesToDelete,
		OnProgress:    describe(spinner),
	})
}

func (a *app) ask(ctx context.Context, paperURL, question string) (*models.Answer, error) {
	spinner := getSpinner("🔍 Searching paper...")
	defer spinner.Finish()

	return a.pipeline.Ask(ctx, pipeline.QARequest{
		PaperURL:   paperURL,
		Question:   question,
		OnProgress: describe(spinner),
	})
}

func printNotes(notes []models.Note) {
	color.Green("\n✓ %d notes\n", len(notes))
	for _, note := range notes {
		fmt.Printf("  • %s %s\n", note.Note, color.HiBlackString("%v", note.PageNumbers))
	}
}

func printAnswer(answer *models.Answer) {
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	assistantPrompt("\nAnswer: ")
	fmt.Println(answer.Answer)

	if len(answer.FollowupQuestions) > 0 {
		color.Yellow("\nFollow-up questions:")
		for _, q := range answer.FollowupQuestions {
			fmt.Printf("  ? %s\n", q)
		}
	}
}
