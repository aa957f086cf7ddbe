// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/studychat/studychat-tui/internal/export"
	"github.com/studychat/studychat-tui/internal/model"
	"github.com/studychat/studychat-tui/internal/store"
	"github.com/studychat/studychat-tui/internal/util"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	dateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	roleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved conversations",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations (most recent first)",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openSessionsStore()
		if err != nil {
			return err
		}
		defer st.Close()

		metas := st.List()
		if len(metas) == 0 {
			fmt.Println("No conversations saved yet.")
			return nil
		}

		for _, meta := range metas {
			fmt.Printf("%s  %s\n", idStyle.Render(shortID(meta.ID)), titleStyle.Render(meta.Title))
			fmt.Printf("    %s messages, updated %s\n",
				countStyle.Render(fmt.Sprintf("%d", meta.MessageCount)),
				dateStyle.Render(meta.UpdatedAt.Local().Format("2006-01-02 15:04")))
			if meta.Preview != "" {
				fmt.Printf("    %s\n", util.Truncate(meta.Preview, 70))
			}
			fmt.Println()
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openSessionsStore()
		if err != nil {
			return err
		}
		defer st.Close()

		conv, err := resolveConversation(st, args[0])
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render(conv.Title))
		fmt.Println(dateStyle.Render(conv.CreatedAt.Local().Format("2006-01-02 15:04")))
		fmt.Println()
		for _, msg := range conv.Messages {
			fmt.Printf("%s %s\n", roleStyle.Render(msg.Role.DisplayName()+":"),
				dateStyle.Render(msg.Timestamp.Local().Format("15:04")))
			fmt.Println(msg.Content)
			fmt.Println()
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openSessionsStore()
		if err != nil {
			return err
		}
		defer st.Close()

		conv, err := resolveConversation(st, args[0])
		if err != nil {
			return err
		}
		if err := st.Delete(conv.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted %q (%s)\n", conv.Title, shortID(conv.ID))
		return nil
	},
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Set a conversation title",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openSessionsStore()
		if err != nil {
			return err
		}
		defer st.Close()

		conv, err := resolveConversation(st, args[0])
		if err != nil {
			return err
		}
		if err := st.Rename(conv.ID, args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %q\n", shortID(conv.ID), args[1])
		return nil
	},
}

var (
	exportFormat string
	exportDir    string
)

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a conversation to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openSessionsStore()
		if err != nil {
			return err
		}
		defer st.Close()

		conv, err := resolveConversation(st, args[0])
		if err != nil {
			return err
		}

		opts := export.DefaultOptions()
		opts.OutputDir = exportDir

		var path string
		switch exportFormat {
		case "md", "markdown":
			path, err = export.Markdown(conv, opts)
		case "json":
			path, err = export.JSON(conv, opts)
		default:
			return fmt.Errorf("unknown format %q (want md or json)", exportFormat)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

func init() {
	sessionsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Export format: md or json")
	sessionsExportCmd.Flags().StringVarP(&exportDir, "out", "o", ".", "Output directory")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// openSessionsStore loads config and opens the hydrated store.
func openSessionsStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openStore(cfg)
}

// resolveConversation finds a conversation by full ID or unique prefix.
func resolveConversation(st *store.Store, idOrPrefix string) (*model.Conversation, error) {
	if conv, err := st.Get(idOrPrefix); err == nil {
		return conv, nil
	}

	var matches []string
	for _, meta := range st.List() {
		if strings.HasPrefix(meta.ID, idOrPrefix) {
			matches = append(matches, meta.ID)
		}
	}
	switch len(matches) {
	case 1:
		return st.Get(matches[0])
	case 0:
		return nil, fmt.Errorf("no conversation matches %q", idOrPrefix)
	default:
		return nil, fmt.Errorf("%q is ambiguous (%d matches); use a longer prefix", idOrPrefix, len(matches))
	}
}

// shortID trims a UUID down to a display-friendly prefix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
