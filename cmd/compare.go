package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/agentcompare/internal/agents"
	"github.com/KaramelBytes/agentcompare/internal/ai"
	"github.com/KaramelBytes/agentcompare/internal/insight"
	"github.com/KaramelBytes/agentcompare/internal/logger"
	"github.com/KaramelBytes/agentcompare/internal/metrics"
	"github.com/KaramelBytes/agentcompare/internal/render"
	"github.com/KaramelBytes/agentcompare/internal/session"
	"github.com/KaramelBytes/agentcompare/internal/utils"
	"github.com/spf13/cobra"
)

var (
	cmpInput       inputFlags
	cmpModel       string
	cmpProvider    string
	cmpMaxTokens   int
	cmpLocale      string
	cmpDryRun      bool
	cmpPrintPrompt bool
	cmpTimeoutSec  int
	cmpRender      bool
	cmpStyle       string
	cmpOutputPath  string
	cmpOutputFmt   string
	cmpQuiet       bool
	cmpJSON        bool
	cmpOllamaHost  string
	cmpBaseURL     string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Ask a model to analyze how agents changed between two periods",
	Example: `  agentcompare compare --old q1.csv --new q2.csv
  agentcompare compare --old q1.csv --new q2.csv --agents Alice --agents Bob --render
  agentcompare compare --old q1.csv --new q2.csv --dry-run
  agentcompare compare --old q1.xlsx --new q2.xlsx --locale en --output report.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmpJSON {
			cmpQuiet = true
		}
		switch cmpOutputFmt {
		case "", "text", "markdown", "md", "json":
		default:
			return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", cmpOutputFmt)
		}
		localeFlag := cmpLocale
		if localeFlag == "" && cfg != nil {
			localeFlag = cfg.Locale
		}
		locale, err := insight.ParseLocale(localeFlag)
		if err != nil {
			return err
		}

		st, err := cmpInput.loadSession(cmd)
		if err != nil {
			return err
		}
		mopt := cmpInput.metricsOptions(cmd)

		runID := logger.NewRunID()
		runLog := log.WithRun(runID)
		// an empty selection is refused before anything is printed, dry-run included
		if _, err := st.Begin(); err != nil {
			if verr := selectionError(runLog, err); verr != nil {
				return verr
			}
			return err
		}
		model := selectModel(cfg, cmpModel)
		maxTokens := selectMaxTokens(cfg, cmpMaxTokens)

		req := &insight.Requester{
			Model:     model,
			MaxTokens: maxTokens,
			Locale:    locale,
			RunID:     runID,
			Log:       log,
		}
		entries := st.Comparison(mopt)
		prepared, err := req.Prepare(entries)
		if err != nil {
			return err
		}
		prompt := prepared.Messages[0].Content
		est := utils.EstimateRequest(prompt, maxTokens, 0)
		if mi, ok := ai.LookupModel(model); ok {
			est.Context = mi.ContextTokens
		}
		if !cmpQuiet {
			fmt.Printf("Agents: %d selected of %d, %d in comparison\n", st.Selection.Len(), len(st.Agents), len(entries))
			fmt.Printf("Tokens: prompt≈%d, max completion %d\n", est.Prompt, est.Completion)
			if cost, ok := ai.EstimateCostUSD(model, est.Prompt, maxTokens); ok {
				fmt.Printf("Estimated max cost: ~$%.4f\n", cost)
			}
		}
		if !est.Fits() {
			runLog.WithField("model", model).WithField("total", est.Total()).WithField("context", est.Context).
				Warn("prompt plus max-tokens exceeds the model context window")
		}

		if cmpDryRun {
			if !cmpQuiet {
				fmt.Println("\n--dry-run: no API call will be made. Prompt preview below --")
				fmt.Printf("Run ID (dry-run): %s\n", runID)
			}
			fmt.Println(prompt)
			return nil
		}
		if cmpPrintPrompt && !cmpQuiet {
			fmt.Println("\n--print-prompt: sending the following prompt --")
			fmt.Println(prompt)
		}

		client, providerName, err := runtimeFactory(cfg, runtimeOptions{
			ProviderFlag: cmpProvider,
			OllamaHost:   cmpOllamaHost,
			BaseURL:      cmpBaseURL,
		})
		if err != nil {
			return err
		}
		req.Runtime = client

		timeoutSec := cmpTimeoutSec
		if !cmd.Flags().Changed("timeout-sec") && cfg != nil && cfg.TimeoutSec > 0 {
			timeoutSec = cfg.TimeoutSec
		}
		if timeoutSec <= 0 {
			timeoutSec = 180
		}
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(sigCtx, time.Duration(timeoutSec)*time.Second)
		defer cancel()

		if !cmpQuiet {
			fmt.Printf("⚙ Analyzing with model=%s ...\n", model)
		}
		startLog := runLog.WithField("provider", providerName).WithField("model", model)
		if c, ok := client.(*ai.Client); ok {
			startLog = startLog.WithField("base_url", c.BaseURL())
		}
		startLog.Info("starting analysis")
		rec := &resultRecorder{req: req}
		final, err := session.Run(ctx, st, rec, mopt)
		if err != nil {
			if verr := selectionError(runLog, err); verr != nil {
				return verr
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("analysis timed out after %ds (raise --timeout-sec): %w", timeoutSec, err)
			}
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("analysis cancelled: %w", err)
			}
			return explainRequestError(err, providerName, model)
		}
		var requestID string
		if rec.last != nil {
			requestID = rec.last.RequestID
		}

		var rendered string
		if cmpRender && !cmpJSON {
			rendered, err = render.Markdown(final.Analysis, render.Options{Style: cmpStyle})
			if err != nil {
				runLog.WithError(err).Warn("markdown rendering failed, printing raw text")
				rendered = ""
			}
		}
		if requestID != "" && !cmpQuiet {
			fmt.Printf("Request ID: %s\n", requestID)
		}
		return formatAndWriteOutput(final.Analysis, outputOptions{
			JSON:         cmpJSON,
			Quiet:        cmpQuiet,
			Model:        model,
			MaxTokens:    maxTokens,
			Locale:       locale,
			Agents:       len(entries),
			PromptTokens: est.Prompt,
			RunID:        runID,
			RequestID:    requestID,
			OutputPath:   cmpOutputPath,
			OutputFormat: cmpOutputFmt,
			Rendered:     rendered,
			Writer:       os.Stdout,
		})
	},
}

// selectionError turns a ValidationError into the CLI message and returns nil
// for any other error.
func selectionError(l *logger.Logger, err error) error {
	var ve *insight.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	l.Warn(ve.Reason)
	return fmt.Errorf("%s (use --agents or drop --exclude): %w", ve.Reason, err)
}

// resultRecorder keeps the last result so the request id can be reported.
type resultRecorder struct {
	req  *insight.Requester
	last *insight.Result
}

func (r *resultRecorder) Request(ctx context.Context, sel agents.Selection, entries []metrics.Entry) (*insight.Result, error) {
	res, err := r.req.Request(ctx, sel, entries)
	r.last = res
	return res, err
}

func init() {
	rootCmd.AddCommand(compareCmd)
	cmpInput.register(compareCmd, true)
	f := compareCmd.Flags()
	f.StringVar(&cmpModel, "model", "", "model id (default from config, gpt-4o-mini)")
	f.StringVar(&cmpProvider, "provider", "", "runtime provider: openai|ollama (default from config)")
	f.IntVar(&cmpMaxTokens, "max-tokens", 0, "max tokens for the response (default from config, 2000)")
	f.StringVar(&cmpLocale, "locale", "", "prompt language: nl|en (default from config, nl)")
	f.BoolVar(&cmpDryRun, "dry-run", false, "build the prompt and print it without calling the API")
	f.BoolVar(&cmpPrintPrompt, "print-prompt", false, "print the prompt being sent to the API")
	f.IntVar(&cmpTimeoutSec, "timeout-sec", 180, "request timeout in seconds")
	f.BoolVar(&cmpRender, "render", false, "render the markdown analysis for the terminal")
	f.StringVar(&cmpStyle, "style", "auto", "render style: auto|dark|light|notty")
	f.StringVar(&cmpOutputPath, "output", "", "optional path to write the analysis (skipped in --dry-run)")
	f.StringVar(&cmpOutputFmt, "format", "text", "output file format: text|markdown|json")
	f.BoolVar(&cmpQuiet, "quiet", false, "suppress non-essential output")
	f.BoolVar(&cmpJSON, "json", false, "emit the analysis as JSON to stdout")
	f.StringVar(&cmpOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	f.StringVar(&cmpBaseURL, "base-url", "", "override the OpenAI-compatible API root")
}
