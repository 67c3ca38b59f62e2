package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nongjianweihao/share-car/internal/card"
	"github.com/nongjianweihao/share-car/internal/export"
	"github.com/nongjianweihao/share-car/internal/repository"
	"github.com/nongjianweihao/share-car/internal/workspace"
)

type searchFlags struct {
	tagIDs   []string
	tagNames []string
	sortBy   string
	dir      string
	archived bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.tagIDs, "tag", nil, "Only cards carrying every tag id")
	cmd.Flags().StringSliceVar(&f.tagNames, "tag-name", nil, "Only cards carrying every tag name (case-insensitive)")
	cmd.Flags().StringVar(&f.sortBy, "sort", string(repository.SortByUpdatedAt), "Sort field: title, createdAt or updatedAt")
	cmd.Flags().StringVar(&f.dir, "dir", string(repository.SortDesc), "Sort direction: asc or desc")
	cmd.Flags().BoolVar(&f.archived, "archived", false, "Include archived cards")
}

func (f *searchFlags) options(query string) (repository.SearchOptions, error) {
	by := repository.SortField(f.sortBy)
	switch by {
	case repository.SortByTitle, repository.SortByCreatedAt, repository.SortByUpdatedAt:
	default:
		return repository.SearchOptions{}, fmt.Errorf("unsupported --sort %q", f.sortBy)
	}
	dir := repository.SortDirection(f.dir)
	if dir != repository.SortAsc && dir != repository.SortDesc {
		return repository.SearchOptions{}, fmt.Errorf("unsupported --dir %q", f.dir)
	}
	return repository.SearchOptions{
		Query:           query,
		TagIDs:          f.tagIDs,
		TagNames:        f.tagNames,
		SortBy:          by,
		Direction:       dir,
		IncludeArchived: f.archived,
	}, nil
}

func newListCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, &f, "")
		},
	}
	f.register(cmd)
	return cmd
}

func newSearchCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search cards by text, tags and block content",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runSearch(cmd, &f, query)
		},
	}
	f.register(cmd)
	return cmd
}

func runSearch(cmd *cobra.Command, f *searchFlags, query string) error {
	opts, err := f.options(query)
	if err != nil {
		return err
	}
	return withService(cmd.Context(), func(ctx context.Context, svc cardService) error {
		cards, err := svc.List(ctx, opts)
		if err != nil {
			return err
		}
		printCards(cmd, cards)
		return nil
	})
}

func printCards(cmd *cobra.Command, cards []card.Card) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTAGS\tUPDATED")
	for _, c := range cards {
		title := c.Title
		if c.Pinned {
			title = "* " + title
		}
		if c.Archived {
			title += " (archived)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, title, workspace.FormatTags(c.Tags), c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "%d card(s)\n", len(cards))
}

func newShowCmd() *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one card as JSON or Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc cardService) error {
				c, err := svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if markdown {
					fmt.Fprint(cmd.OutOrStdout(), export.Markdown(c))
					return nil
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(c)
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render as Markdown instead of JSON")
	return cmd
}

type createFlags struct {
	title       string
	summary     string
	category    string
	tags        string
	texts       []string
	items       []string
	ordered     bool
	quote       string
	attribution string
	pinned      bool
}

func newCreateCmd() *cobra.Command {
	var f createFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a card",
		Long: `Create a card from flags. Each --text adds a text block; --item values
form one list block; --quote adds a quote block. Blocks are added in that order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc cardService) error {
				session := workspace.New(svc.Editor(), workspace.WithLogger(log.Logger))
				if err := fillDraft(session, f); err != nil {
					return err
				}
				created, err := session.Save(ctx)
				var draftErr workspace.DraftError
				if errors.As(err, &draftErr) {
					for _, p := range draftErr.Problems {
						fmt.Fprintln(cmd.ErrOrStderr(), "  -", p)
					}
					return fmt.Errorf("card not saved: %d problem(s)", len(draftErr.Problems))
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Card created: %s - %s\n", created.ID, created.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.title, "title", "", "Card title (required)")
	cmd.Flags().StringVar(&f.summary, "summary", "", "Short summary")
	cmd.Flags().StringVar(&f.category, "category", "", "Category")
	cmd.Flags().StringVar(&f.tags, "tags", "", "Comma-separated tag names")
	cmd.Flags().StringArrayVar(&f.texts, "text", nil, "Text block (repeatable)")
	cmd.Flags().StringArrayVar(&f.items, "item", nil, "List item (repeatable)")
	cmd.Flags().BoolVar(&f.ordered, "ordered", false, "Number the list items")
	cmd.Flags().StringVar(&f.quote, "quote", "", "Quote block text")
	cmd.Flags().StringVar(&f.attribution, "attribution", "", "Quote attribution")
	cmd.Flags().BoolVar(&f.pinned, "pinned", false, "Pin the card")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

// fillDraft builds a new draft in session from the create flags.
func fillDraft(session *workspace.Session, f createFlags) error {
	draft := session.NewDraft()
	session.SetTitle(strings.TrimSpace(f.title))
	session.SetSummary(f.summary)
	session.SetCategory(f.category)
	session.SetTags(f.tags)
	session.SetPinned(f.pinned)

	// the fresh draft starts with one empty text block
	first := draft.Blocks[0].Base().ID
	if len(f.texts) == 0 {
		session.RemoveBlock(first)
	}
	for i, text := range f.texts {
		id := first
		if i > 0 {
			b, err := session.AddBlock(card.BlockText)
			if err != nil {
				return err
			}
			id = b.Base().ID
		}
		session.UpdateBlock(id, card.TextBlock{Text: text, Emphasis: card.EmphasisDefault})
	}
	if len(f.items) > 0 {
		b, err := session.AddBlock(card.BlockList)
		if err != nil {
			return err
		}
		session.UpdateBlock(b.Base().ID, card.ListBlock{Items: f.items, Ordered: f.ordered})
	}
	if f.quote != "" {
		b, err := session.AddBlock(card.BlockQuote)
		if err != nil {
			return err
		}
		session.UpdateBlock(b.Base().ID, card.QuoteBlock{Quote: f.quote, Attribution: f.attribution})
	}
	return nil
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a card; unknown ids are ignored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc cardService) error {
				if err := svc.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Card deleted: %s\n", args[0])
				return nil
			})
		},
	}
}
