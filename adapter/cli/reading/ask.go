package reading

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/augur/adapter/cli"
	readingapp "github.com/felixgeelhaar/augur/internal/reading/application"
	"github.com/felixgeelhaar/augur/internal/reading/domain"
)

var (
	session      string
	contextData  map[string]string
	birthDate    string
	fullName     string
	partnerName  string
	zodiacSign   string
	messageCount int
	premium      bool
	asJSON       bool
)

var askCmd = &cobra.Command{
	Use:   "ask <module> <message>",
	Short: "Ask a module for a reading",
	Long: `Ask a module for a reading.

With --session the request is tracked in the ledger exactly as the API
does. Without it the request is stateless and --count and --premium
describe the caller's state.

Examples:
  augur reading ask dreams "I dreamt of a silver river" --session s1 --context mood=calm
  augur reading ask numerology "What does my path hold?" --birth-date 1990-04-12 --context name=Ana
  augur reading ask love "Will it last?" --count 4 --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		req := domain.Request{
			UserMessage:   args[1],
			BirthDate:     birthDate,
			FullName:      fullName,
			PartnerName:   partnerName,
			ZodiacSign:    zodiacSign,
			IsPremiumUser: premium,
		}
		if len(contextData) > 0 {
			req.ModuleContextData = make(map[string]any, len(contextData))
			for k, v := range contextData {
				req.ModuleContextData[k] = v
			}
		}
		if messageCount > 0 {
			req.MessageCount = &messageCount
		}

		answer, err := app.Readings.Ask(cmd.Context(), readingapp.Input{
			Module:    args[0],
			SessionID: session,
			Request:   req,
		})

		out := cmd.OutOrStdout()
		if asJSON {
			resp := domain.SuccessResponse(answer, time.Now())
			if err != nil {
				resp = domain.ErrorResponse(args[0], err, time.Now())
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(resp); encErr != nil {
				return encErr
			}
			if err != nil {
				return fmt.Errorf("%s", domain.Classify(err))
			}
			return nil
		}

		if err != nil {
			return fmt.Errorf("%s: %w", domain.Classify(err), err)
		}

		fmt.Fprintln(out, answer.Text)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "backend: %s (attempts %d)\n", answer.Backend, answer.Attempts)
		fmt.Fprintf(out, "complete: %t  free remaining: %d\n", answer.Complete, answer.FreeMessagesRemaining)
		if answer.ShowPaywall {
			fmt.Fprintf(out, "paywall: %s\n", answer.PaywallMessage)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&session, "session", "s", "", "session id; empty runs statelessly")
	askCmd.Flags().StringToStringVar(&contextData, "context", nil, "module context data as key=value pairs")
	askCmd.Flags().StringVar(&birthDate, "birth-date", "", "birth date (YYYY-MM-DD)")
	askCmd.Flags().StringVar(&fullName, "full-name", "", "full name")
	askCmd.Flags().StringVar(&partnerName, "partner-name", "", "partner name")
	askCmd.Flags().StringVar(&zodiacSign, "zodiac-sign", "", "zodiac sign")
	askCmd.Flags().IntVar(&messageCount, "count", 0, "1-based message ordinal for stateless requests")
	askCmd.Flags().BoolVar(&premium, "premium", false, "treat a stateless caller as premium")
	askCmd.Flags().BoolVar(&asJSON, "json", false, "print the API response body")
}
