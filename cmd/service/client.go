package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/quotes-api/internal/adapters/clients"
	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// maxParallelGets bounds the concurrent requests of "client get".
const maxParallelGets = 4

type clientOptions struct {
	*globalOptions

	baseURL    string
	jsonOutput bool
}

func newClientCmd(global *globalOptions) *cobra.Command {
	opts := &clientOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Talk to a running quotes API",
		Long: "Calls a quotes API over HTTP. The server address comes from --url, or\n" +
			"client.base_url in the selected profile.",
	}

	cmd.PersistentFlags().StringVar(&opts.baseURL, "url", "", "base URL of the quotes API (overrides client.base_url)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of a table")

	cmd.AddCommand(
		newClientListCmd(opts),
		newClientGetCmd(opts),
		newClientSearchCmd(opts),
		newClientCreateCmd(opts),
		newClientUpdateCmd(opts),
		newClientDeleteCmd(opts),
	)

	return cmd
}

func newClientListCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := opts.quotesClient(cmd)
			if err != nil {
				return err
			}

			quotes, err := q.List(cmd.Context())
			if err != nil {
				return err
			}

			return opts.printQuotes(cmd.OutOrStdout(), quotes)
		},
	}
}

func newClientGetCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID [ID...]",
		Short: "Show one or more quotes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, len(args))
			for i, raw := range args {
				id, err := parseID(raw)
				if err != nil {
					return err
				}

				ids[i] = id
			}

			q, err := opts.quotesClient(cmd)
			if err != nil {
				return err
			}

			quotes := make([]*domain.Quote, len(ids))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(maxParallelGets)

			for i, id := range ids {
				g.Go(func() error {
					quote, err := q.Get(ctx, id)
					if err != nil {
						return err
					}

					quotes[i] = quote

					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}

			return opts.printQuotes(cmd.OutOrStdout(), quotes)
		},
	}
}

func newClientSearchCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search AUTHOR",
		Short: "Find quotes whose author contains AUTHOR, ignoring case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.quotesClient(cmd)
			if err != nil {
				return err
			}

			quotes, err := q.SearchByAuthor(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return opts.printQuotes(cmd.OutOrStdout(), quotes)
		},
	}
}

func newClientCreateCmd(opts *clientOptions) *cobra.Command {
	var author, text string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a new quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := opts.quotesClient(cmd)
			if err != nil {
				return err
			}

			quote, err := q.Create(cmd.Context(), author, text)
			if err != nil {
				return err
			}

			return opts.printQuotes(cmd.OutOrStdout(), []*domain.Quote{quote})
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "who said it")
	cmd.Flags().StringVar(&text, "text", "", "the quotation")
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func newClientUpdateCmd(opts *clientOptions) *cobra.Command {
	var author, text string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace the author and text of a quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			q, err := opts.quotesClient(cmd)
			if err != nil {
				return err
			}

			if err := q.Update(cmd.Context(), id, author, text); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Quote %d updated.\n", id)

			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "new author")
	cmd.Flags().StringVar(&text, "text", "", "new text")
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func newClientDeleteCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a quote and print what was stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			q, err := opts.quotesClient(cmd)
			if err != nil {
				return err
			}

			quote, err := q.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}

			return opts.printQuotes(cmd.OutOrStdout(), []*domain.Quote{quote})
		},
	}
}

// quotesClient builds a client from the profile's client section. The
// config is loaded without the server-side validation.
func (o *clientOptions) quotesClient(cmd *cobra.Command) (*clients.QuotesClient, error) {
	cfg, err := config.LoadFrom(o.configDir, o.profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if o.baseURL != "" {
		cfg.Client.BaseURL = o.baseURL
	}

	logger := logging.NewWithWriter(&logging.Config{
		Level:   "warn",
		Format:  "text",
		Service: cfg.App.Name + "-client",
		Version: Version,
	}, cmd.ErrOrStderr())

	c, err := clients.New(clients.ConfigFrom(&cfg.Client, logger))
	if err != nil {
		return nil, err
	}

	logger.Debug("client ready", slog.String("base_url", cfg.Client.BaseURL))

	return clients.NewQuotesClient(c), nil
}

type quoteOutput struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

func (o *clientOptions) printQuotes(w io.Writer, quotes []*domain.Quote) error {
	if o.jsonOutput {
		out := make([]quoteOutput, len(quotes))
		for i, q := range quotes {
			out[i] = quoteOutput{ID: q.ID, Author: q.Author, Text: q.Text}
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	if len(quotes) == 0 {
		fmt.Fprintln(w, "No quotes found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tTEXT")

	for _, q := range quotes {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", q.ID, q.Author, q.Text)
	}

	return tw.Flush()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quote id must be an integer, got %q", raw)
	}

	return id, nil
}
