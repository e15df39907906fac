package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/snarg/lecturescribe/internal/subtitle"
	"github.com/spf13/cobra"
)

var errNoCues = errors.New("no timed cues found")

func newConvertCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "convert <file|->",
		Short: "Convert a WebVTT or timed-text file to SRT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			srt, err := convertPayload(payload)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if outPath == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), srt)
				return err
			}
			return os.WriteFile(outPath, []byte(srt), 0o644)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Write SRT to this file instead of stdout")
	return cmd
}

func readInput(stdin io.Reader, name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func convertPayload(payload string) (string, error) {
	records := subtitle.Convert(payload)
	if len(records) == 0 {
		return "", errNoCues
	}
	return subtitle.Format(records), nil
}
