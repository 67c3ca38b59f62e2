package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nongjianweihao/share-car/internal/export"
)

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup of every card, archived included",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc cardService) error {
				data, err := svc.Export(ctx)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write backup: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backup written: %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Backup file; empty or - writes to stdout")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the whole collection with a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}
			return withService(cmd.Context(), func(ctx context.Context, svc cardService) error {
				n, err := svc.Import(ctx, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d card(s)\n", n)
				return nil
			})
		},
	}
}

func newShareCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "share <id>",
		Short: "Render a card as a standalone HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc cardService) error {
				c, err := svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				page, err := svc.Share(ctx, c.ID)
				if err != nil {
					return err
				}
				path := filepath.Join(dir, export.ShareFileName(c))
				if err := os.WriteFile(path, page, 0o644); err != nil {
					return fmt.Errorf("write share page: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Share page written: %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory for the HTML file")
	return cmd
}
