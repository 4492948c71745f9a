package main

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/kanplan/internal/tui"
	"github.com/spf13/cobra"
)

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// newBoardCommand opens the interactive status board over the configured store.
func newBoardCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive status board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			m := tui.NewModel(
				rt.svc,
				tui.WithFieldConfig(tui.FieldConfig{
					ShowWindow:      rt.cfg.Board.ShowWindow,
					ShowDescription: rt.cfg.Board.ShowDescription,
				}),
				tui.WithMarkdownStyle(rt.cfg.Board.MarkdownStyle),
			)
			rt.logger.Info("starting tui program loop")
			rt.logger.SetConsoleEnabled(false)
			_, err = programFactory(m).Run()
			rt.logger.SetConsoleEnabled(true)
			if err != nil {
				rt.logger.Error("tui program terminated with error", "err", err)
				return fmt.Errorf("run tui program: %w", err)
			}
			rt.logger.Info("tui program exited")
			return nil
		},
	}
}
