package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Alp4ka/keypager"
)

type element struct {
	Column    string             `json:"column"`
	Value     any                `json:"value"`
	Direction keypager.Direction `json:"direction"`
}

// NewRootCommand creates the cursorctl command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cursorctl",
		Short:         "Inspect and build keypager cursor tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newDecodeCommand(),
		newEncodeCommand(),
	)

	return cmd
}

func newDecodeCommand() *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "decode <token>",
		Short: "Print the sort keys stored in a cursor token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := keypager.DecodeCursor(args[0])
			if err != nil {
				return err
			}
			if c == nil {
				return fmt.Errorf("empty token")
			}

			elements := lo.Map(c.Elements(), func(e keypager.CursorElement, _ int) element {
				return element{Column: e.Column, Value: e.Value, Direction: e.Direction}
			})

			var out []byte
			if compact {
				out, err = json.Marshal(elements)
			} else {
				out, err = json.MarshalIndent(elements, "", "  ")
			}
			if err != nil {
				return fmt.Errorf("failed to render cursor: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "print the elements on one line")
	return cmd
}

func newEncodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encode column=value:asc|desc...",
		Short: "Build a cursor token, the paginate-by column goes last",
		Example: "  cursorctl encode amount=100:asc id=7:desc\n" +
			"  cursorctl encode 'payer=Ruoho:asc' id=7:desc",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			elements := make([]keypager.CursorElement, 0, len(args))
			for _, arg := range args {
				e, err := parseElement(arg)
				if err != nil {
					return err
				}

				elements = append(elements, e)
			}

			c, err := keypager.NewCursor(elements...)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), c.String())
			return err
		},
	}
}

// parseElement parses "column=value:direction". Values that look like
// integers or floats are encoded as numbers; quote with a leading "s:" to
// force a string, e.g. "zip=s:0042:asc".
func parseElement(arg string) (keypager.CursorElement, error) {
	column, rest, ok := strings.Cut(arg, "=")
	if !ok || column == "" {
		return keypager.CursorElement{}, fmt.Errorf("invalid element '%s', want column=value:direction", arg)
	}

	sep := strings.LastIndex(rest, ":")
	if sep < 0 {
		return keypager.CursorElement{}, fmt.Errorf("invalid element '%s', missing direction", arg)
	}

	direction, err := keypager.ParseDirection(strings.ToLower(rest[sep+1:]))
	if err != nil {
		return keypager.CursorElement{}, fmt.Errorf("invalid element '%s': %w", arg, err)
	}

	return keypager.CursorElement{
		Column:    column,
		Value:     parseValue(rest[:sep]),
		Direction: direction,
	}, nil
}

func parseValue(raw string) any {
	if s, ok := strings.CutPrefix(raw, "s:"); ok {
		return s
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}

	return raw
}
