package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"xsched/internal/app"
	"xsched/internal/xs"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider credentials",
}

var authSetupValues []string

var authSetupCmd = &cobra.Command{
	Use:   "setup PROVIDER",
	Short: "Store credentials for a provider (x or gemini)",
	Long: `Store credentials for a provider. Values not given with --set are
prompted for without echo. Environment variables such as
XSCHED_X_ACCESS_TOKEN take precedence over stored values.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var provider *xs.Provider
		for i := range xs.Providers {
			if xs.Providers[i].Name == args[0] {
				provider = &xs.Providers[i]
			}
		}
		if provider == nil {
			return fmt.Errorf("%w: unknown provider %q", xs.ErrValidation, args[0])
		}
		values, err := parseVars(authSetupValues)
		if err != nil {
			return err
		}
		if values == nil {
			values = map[string]string{}
		}

		in := bufio.NewReader(cmd.InOrStdin())
		for _, f := range provider.Fields {
			if values[f] != "" {
				continue
			}
			v, err := promptSecret(in, fmt.Sprintf("%s %s: ", provider.Name, f))
			if err != nil {
				return fmt.Errorf("%w: reading %s: %w", xs.ErrValidation, f, err)
			}
			values[f] = v
		}

		return withApp("AuthSetup", func(a *app.XSApp) error {
			if err := a.Auth().Setup(provider.Name, values); err != nil {
				return err
			}
			fmt.Printf("Credentials for %s saved. Check them with: xsched auth test %s\n", provider.Name, provider.Name)
			return nil
		})
	},
}

// promptSecret reads one value, without echo when stdin is a terminal.
func promptSecret(in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err == nil {
			return strings.TrimSpace(string(b)), nil
		}
	}
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which providers have credentials",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("AuthStatus", func(a *app.XSApp) error {
			rows := [][]string{}
			for _, st := range a.Auth().Status() {
				state := color.GreenString("configured")
				if !st.Configured {
					state = color.YellowString("missing " + strings.Join(st.Missing, ", "))
				}
				rows = append(rows, []string{st.Name, state})
			}
			fmt.Println(renderTable([]string{"Provider", "Credentials"}, rows, nil))
			return nil
		})
	},
}

var authTestCmd = &cobra.Command{
	Use:   "test PROVIDER",
	Short: "Verify stored credentials against the provider",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("AuthTest", func(a *app.XSApp) error {
			account, err := a.Auth().Test(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printKV("AUTH_STATUS", "ok")
			fmt.Printf("Authenticated as %s\n", account)
			return nil
		})
	},
}

// stats command
var statsPeriod string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show tweet activity, API spend and budget",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := xs.ParsePeriod(statsPeriod)
		if err != nil {
			return err
		}
		return withApp("Stats", func(a *app.XSApp) error {
			st, err := a.Stats().Report(period)
			if err != nil {
				return err
			}

			fmt.Printf("Period: %s (since %s)\n\n", st.Period, st.Since.Local().Format("2006-01-02 15:04"))
			c := st.Tweets
			fmt.Println(renderTable(
				[]string{"Created", "Posted", "Failed", "Scheduled", "Drafts"},
				[][]string{{strconv.Itoa(c.Created), strconv.Itoa(c.Posted), strconv.Itoa(c.Failed), strconv.Itoa(c.Scheduled), strconv.Itoa(c.Drafts)}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))

			if len(st.Usage) > 0 {
				rows := make([][]string, 0, len(st.Usage)+1)
				for _, u := range st.Usage {
					rows = append(rows, []string{u.APIName, strconv.Itoa(u.Calls), fmt.Sprintf("$%.4f", u.Cost)})
				}
				rows = append(rows, []string{"total", "", fmt.Sprintf("$%.4f", st.TotalCost)})
				fmt.Println(renderTable([]string{"API", "Calls", "Cost"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight}))
			}

			b := st.Budget
			fmt.Printf("Budget: $%.2f of $%.2f this month (%.0f%%), %s\n",
				b.Spent, b.Limit, b.PercentUsed(), verdictText(b))
			printKV("TOTAL_COST", fmt.Sprintf("%.4f", st.TotalCost))
			printKV("BUDGET_STATUS", b.Verdict())
			return nil
		})
	},
}

func init() {
	authSetupCmd.Flags().StringArrayVar(&authSetupValues, "set", nil, "Credential field as field=value (repeatable)")

	authCmd.AddCommand(authSetupCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authTestCmd)

	statsCmd.Flags().StringVarP(&statsPeriod, "period", "p", string(xs.PeriodMonth), "today, week, month or all")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(statsCmd)
}
