package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zkp2p/peercard/internal/card"
	"github.com/zkp2p/peercard/internal/fetch"
	"github.com/zkp2p/peercard/internal/generate"
	"github.com/zkp2p/peercard/internal/render"
)

var (
	handle      string
	showAddress bool
	outputPath  string
	volumeFlag  string
)

// generateCmd builds, exports and links a card
var generateCmd = &cobra.Command{
	Use:   "generate <ens-name-or-address>",
	Short: "Generate a peer card PNG and its share link",
	Long: `Fetch the avatar of --handle and the stats of the given ENS name or
wallet address, render the card at 2x density and print the share link.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

// resolveCmd prints the identity a card would show
var resolveCmd = &cobra.Command{
	Use:   "resolve <ens-name-or-address>",
	Short: "Resolve an ENS name or address to its display label",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

// shareCmd prints the share link for a volume
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Print the share intent URL for a volume",
	Args:  cobra.NoArgs,
	RunE:  runShare,
}

func init() {
	generateCmd.Flags().StringVar(&handle, "handle", "", "Social handle, with or without @ (required)")
	generateCmd.Flags().BoolVar(&showAddress, "show-address", true, "Show the address line on the card")
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", render.DefaultFilename, "PNG output path")
	_ = generateCmd.MarkFlagRequired("handle")

	shareCmd.Flags().StringVar(&volumeFlag, "volume", "", "Filled volume in USD (required)")
	_ = shareCmd.MarkFlagRequired("volume")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return reportFailure(cmd, "generate card", err)
	}
	defer a.close()

	result, err := a.generator.Generate(ctx, generate.Request{
		Handle:      handle,
		Input:       args[0],
		ShowAddress: showAddress,
	})
	if err != nil {
		return reportFailure(cmd, "generate card", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "identity: %s (%s)\n", result.Identity.DisplayLabel, result.Identity.Address.Hex())
	fmt.Fprintf(out, "volume:   %s\n", result.Card.VolumeText())

	// Export failures are independent from generation and only logged
	path, err := a.renderer.ExportFile(outputPath, result.Card)
	if err != nil {
		logrus.WithError(err).Error("Failed to export card")
	} else {
		fmt.Fprintf(out, "card:     %s\n", path)
	}
	fmt.Fprintf(out, "share:    %s\n", result.Card.ShareIntent())

	if err != nil {
		return errReported
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	names, resolver, err := newResolver(ctx, cfg, fetch.NewLimiter(cfg))
	if err != nil {
		return reportFailure(cmd, "resolve identity", err)
	}
	defer names.Close()

	id, err := resolver.Resolve(ctx, args[0])
	if err != nil {
		return reportFailure(cmd, "resolve identity", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "address: %s\n", id.Address.Hex())
	fmt.Fprintf(out, "label:   %s\n", id.DisplayLabel)
	if id.HasName() {
		fmt.Fprintf(out, "name:    %s\n", id.Name)
	}
	return nil
}

func runShare(cmd *cobra.Command, args []string) error {
	volume, err := decimal.NewFromString(volumeFlag)
	if err != nil {
		return fmt.Errorf("invalid volume %q: %w", volumeFlag, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), card.ShareIntent(volume))
	return nil
}

// reportFailure logs the failed operation and prints the generic notice
func reportFailure(cmd *cobra.Command, op string, err error) error {
	logrus.WithError(err).Errorf("Failed to %s", op)
	fmt.Fprintln(cmd.ErrOrStderr(), failureNotice)
	return errReported
}
