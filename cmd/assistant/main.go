// cmd/assistant/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"salesassistant/config"
	"salesassistant/logging"
	"salesassistant/models"
	"salesassistant/services"
)

var (
	configPath string
	modelFlag  string
	logLevel   string
	salesInput models.SalesInput
	fileFlag   string
)

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "assistant",
	Short:         "Terminal front end for the sales assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session. Replies stream as they arrive.

Commands inside the session:
  /model <name>   switch the active model
  /insight        fill in the sales form and generate an insight
  /insights       list the insights generated so far
  /exit           end the session`,
	RunE: runChat,
}

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Generate a single sales insight and print it",
	RunE:  runInsight,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (defaults to $ASSISTANT_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "model to start with (defaults to llm.default_model)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (defaults to warn so logs stay off the prompt)")

	f := insightCmd.Flags()
	f.StringVar(&salesInput.ProductName, "product", "", "product name")
	f.StringVar(&salesInput.CompanyURL, "company", "", "company URL")
	f.StringVar(&salesInput.ProductCategory, "category", "", "product category")
	f.StringVar(&salesInput.Competitors, "competitors", "", "competitor URLs, newline or comma separated")
	f.StringVar(&salesInput.ValueProposition, "value", "", "value proposition")
	f.StringVar(&salesInput.TargetCustomer, "target", "", "target customer")
	f.StringVar(&fileFlag, "file", "", "product overview (pdf, docx or txt)")

	rootCmd.AddCommand(chatCmd, insightCmd)
}

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *services.Session
}

func newApp() (*app, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cliLogging(cfg.Logging, logLevel))
	if err != nil {
		return nil, err
	}

	client, err := services.NewCompletionClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	model := cfg.LLM.DefaultModel
	if modelFlag != "" {
		model = modelFlag
	}
	sessions := services.NewSessionManager(client, model, nil, logger)

	return &app{cfg: cfg, logger: logger, session: sessions.Create()}, nil
}

// cliLogging lowers the default level to warn so info lines do not land in
// the middle of the prompt. A level from the flag, LOG_LEVEL or a config file
// that differs from the default is kept.
func cliLogging(cfg config.LoggingConfig, flagLevel string) config.LoggingConfig {
	switch {
	case flagLevel != "":
		cfg.Level = flagLevel
	case os.Getenv("LOG_LEVEL") != "":
	case cfg.Level == config.Default().Logging.Level:
		cfg.Level = "warn"
	}
	return cfg
}

func (a *app) close() {
	_ = a.session.End()
	_ = a.logger.Sync()
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, boldGreen("Sales Assistant"))
	fmt.Fprintf(out, "Using model: %s\n", boldCyan(a.session.Model()))
	fmt.Fprintln(out, "Type your message and press Enter. Type /exit or press Ctrl+C to quit.")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, boldGreen("You: "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := a.command(ctx, out, scanner, line)
			if err != nil {
				fmt.Fprintln(out, red("Error: "+err.Error()))
			}
			if done {
				return nil
			}
			continue
		}

		fmt.Fprint(out, boldCyan("Assistant: "))
		printed := 0
		_, err := a.session.SubmitUserMessage(ctx, line, func(partial string) {
			// progress is cumulative; print only the new suffix
			fmt.Fprint(out, partial[printed:])
			printed = len(partial)
		})
		fmt.Fprintln(out)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, red("Error: "+err.Error()))
		}
		fmt.Fprintln(out)
	}
}

func (a *app) command(ctx context.Context, out io.Writer, scanner *bufio.Scanner, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	switch name {
	case "/exit", "/quit":
		return true, nil
	case "/model":
		if err := a.session.SetModel(strings.TrimSpace(arg)); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Using model: %s\n", boldCyan(a.session.Model()))
	case "/insight":
		in, err := promptSalesInput(out, scanner)
		if err != nil {
			return false, err
		}
		insight, err := a.session.SubmitSalesInput(ctx, in)
		if err != nil {
			return false, err
		}
		printInsight(out, insight)
	case "/insights":
		insights, err := a.session.Insights()
		if err != nil {
			return false, err
		}
		if len(insights) == 0 {
			fmt.Fprintln(out, yellow("No insights saved yet."))
		}
		for _, insight := range insights {
			printInsight(out, insight)
		}
	default:
		return false, errors.New("unknown command " + strconv.Quote(name))
	}
	return false, nil
}

func promptSalesInput(out io.Writer, scanner *bufio.Scanner) (models.SalesInput, error) {
	var in models.SalesInput
	fields := []struct {
		label string
		dst   *string
	}{
		{"Product Name", &in.ProductName},
		{"Company URL", &in.CompanyURL},
		{"Product Category", &in.ProductCategory},
		{"Competitors (comma separated)", &in.Competitors},
		{"Value Proposition", &in.ValueProposition},
		{"Target Customer", &in.TargetCustomer},
		{"Product Overview file (optional)", &in.UploadedFileName},
	}
	for _, f := range fields {
		fmt.Fprint(out, yellow(f.label+": "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return in, err
			}
			return in, io.ErrUnexpectedEOF
		}
		*f.dst = strings.TrimSpace(scanner.Text())
	}
	return in, checkOverview(&in)
}

func checkOverview(in *models.SalesInput) error {
	if in.UploadedFileName == "" {
		return nil
	}
	if !models.IsSupportedOverview(in.UploadedFileName) {
		return fmt.Errorf("product overview must be a pdf, docx or txt file, got %q", in.UploadedFileName)
	}
	in.UploadedFileName = filepath.Base(in.UploadedFileName)
	return nil
}

func printInsight(out io.Writer, insight models.IndexedInsight) {
	fmt.Fprintf(out, "%s %s (%s)\n", boldCyan(fmt.Sprintf("Insight %d:", insight.Index)), insight.ProductName, insight.Category)
	fmt.Fprintln(out, insight.Text)
	fmt.Fprintln(out)
}

func runInsight(cmd *cobra.Command, _ []string) error {
	salesInput.UploadedFileName = fileFlag
	if err := checkOverview(&salesInput); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	insight, err := a.session.SubmitSalesInput(cmd.Context(), salesInput)
	if err != nil {
		return err
	}
	printInsight(cmd.OutOrStdout(), insight)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}
