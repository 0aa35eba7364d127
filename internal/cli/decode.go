package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/shade/internal/trace"
	"github.com/roach88/shade/internal/wire"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Response    bool
	PointerSize int
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a wire record",
		Long: `Decode a hex-encoded ExecuteCommand payload, or with --response an
ExecuteResult payload, and print it as canonical JSON.

Examples:
  shade decode 040000000000000000000000000000000000000000000000
  shade decode --response 0101
  shade decode --pointer-size 4 <hex>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Response, "response", false, "decode an executor response instead of a command")
	cmd.Flags().IntVar(&opts.PointerSize, "pointer-size", wire.DefaultPointerSize, "width of ref payloads (4 or 8)")

	return cmd
}

func runDecode(opts *DecodeOptions, arg string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	raw, err := hex.DecodeString(strings.TrimSpace(arg))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeHex, fmt.Sprintf("invalid hex: %v", err))
	}
	codec, err := wire.NewCodec(opts.PointerSize)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	data, err := decodeRecord(codec, raw, opts.Response)
	if err != nil {
		return formatter.FailWith(ExitFailure, err, ErrCodeGeneric)
	}

	if opts.Format == "json" {
		return formatter.Success(json.RawMessage(data))
	}
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}

// decodeRecord decodes raw and renders it as canonical JSON.
func decodeRecord(codec wire.Codec, raw []byte, response bool) ([]byte, error) {
	var obj trace.Object
	if response {
		resp, err := codec.DecodeResponse(raw)
		if err != nil {
			return nil, err
		}
		if obj, err = trace.Response(resp); err != nil {
			return nil, err
		}
	} else {
		c, err := codec.DecodeCommand(raw)
		if err != nil {
			return nil, err
		}
		if obj, err = trace.Command(c); err != nil {
			return nil, err
		}
	}
	return trace.MarshalCanonical(obj)
}
