package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hengadev/encattr"
)

func newKeysCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage named attribute keys",
	}

	var overwrite bool
	generate := &cobra.Command{
		Use:   "generate <ref>",
		Short: "Generate a random key for ref in the configured key provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ref := args[0]

			keys, err := openKeySource(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer keys.Close()

			if keys.keyring != nil {
				// The keyring creates a data key on first resolution.
				if overwrite {
					return fmt.Errorf("%w: --overwrite is not supported by provider %s",
						encattr.ErrInvalidConfiguration, a.cfg.KeyProvider)
				}
				if _, err := keys.keyring.ResolveKey(ctx, ref); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "key %s ready in %s\n", ref, keys.Location(ref))
				return nil
			}

			written, err := encattr.GenerateKey(ctx, keys.secrets, ref, overwrite)
			if err != nil {
				return err
			}
			if !written {
				fmt.Fprintf(cmd.OutOrStdout(), "key %s already exists at %s, use --overwrite to replace it\n", ref, keys.Location(ref))
				return nil
			}
			a.logger.InfoContext(ctx, "key generated", "ref", ref, "provider", a.cfg.KeyProvider)
			fmt.Fprintf(cmd.OutOrStdout(), "key %s stored at %s\n", ref, keys.Location(ref))
			return nil
		},
	}
	generate.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing key")

	rewrap := &cobra.Command{
		Use:   "rewrap",
		Short: "Re-wrap every data key in the keyring with the current KEK",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !a.cfg.UsesKMS() {
				return fmt.Errorf("%w: provider %s has no keyring", encattr.ErrInvalidConfiguration, a.cfg.KeyProvider)
			}
			keys, err := openKeySource(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer keys.Close()

			n, err := keys.keyring.Rewrap(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "re-wrapped %d data keys with KEK %s\n", n, keys.keyring.KEKID())
			return nil
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List the data keys tracked by the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !a.cfg.UsesKMS() {
				return fmt.Errorf("%w: provider %s has no keyring", encattr.ErrInvalidConfiguration, a.cfg.KeyProvider)
			}
			keys, err := openKeySource(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer keys.Close()

			refs, err := keys.keyring.Refs(ctx)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				fmt.Fprintln(cmd.OutOrStdout(), ref)
			}
			return nil
		},
	}

	cmd.AddCommand(generate, rewrap, list)
	return cmd
}
