package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hengadev/encattr"
)

func newEncryptCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <model> <attribute> <value>",
		Short: "Print the shadow column values for a plaintext value",
		Long: "Print the shadow column values for a plaintext value.\n\n" +
			"Attributes with a marshal format parse value as YAML, so JSON works too.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := a.openModel(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			attr, ok := m.EncryptedAttribute(args[1])
			if !ok {
				return encattr.NewUnknownAttributeError(m.Name(), args[1])
			}

			var value any = args[2]
			if attr.Serializer != nil {
				if err := yaml.Unmarshal([]byte(args[2]), &value); err != nil {
					return fmt.Errorf("%w: value for '%s': %w", encattr.ErrTypeConversion, attr.Name, err)
				}
			}

			cols, err := m.Encrypt(m.NewRecord(), attr.Name, value)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(cols))
			for col := range cols {
				names = append(names, col)
			}
			sort.Strings(names)
			for _, col := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", col, cols[col])
			}
			return nil
		},
	}
}

func newDecryptCommand(a *app) *cobra.Command {
	var iv, salt string
	cmd := &cobra.Command{
		Use:   "decrypt <model> <attribute> <ciphertext>",
		Short: "Decrypt a shadow column value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closeFn, err := a.openModel(ctx, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			attr, ok := m.EncryptedAttribute(args[1])
			if !ok {
				return encattr.NewUnknownAttributeError(m.Name(), args[1])
			}

			stored := map[string]any{attr.Column: args[2]}
			switch attr.Mode {
			case encattr.PerAttributeIVAndSalt:
				stored[attr.SaltColumn()] = salt
				fallthrough
			case encattr.PerAttributeIV:
				if iv == "" {
					return fmt.Errorf("%w: mode %s needs --iv", encattr.ErrInvalidConfiguration, attr.Mode)
				}
				stored[attr.IVColumn()] = iv
			}

			value, err := m.Decrypt(m.NewRecord(), attr.Name, stored)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
	cmd.Flags().StringVar(&iv, "iv", "", "Value of the IV column")
	cmd.Flags().StringVar(&salt, "salt", "", "Value of the salt column")
	return cmd
}

// openModel builds the named model and registers it with a store so its key
// references are resolved. The returned func releases the store and keys.
func (a *app) openModel(ctx context.Context, name string) (*encattr.Model, func(), error) {
	file, err := a.loadModels()
	if err != nil {
		return nil, nil, err
	}
	def, ok := file.Find(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: model %s is not defined in %s", encattr.ErrInvalidConfiguration, name, a.modelsPath)
	}
	m, err := def.Build(a.logger)
	if err != nil {
		return nil, nil, err
	}

	keys, err := openKeySource(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	resolver, err := keys.Resolver()
	if err != nil {
		keys.Close()
		return nil, nil, err
	}

	db, err := encattr.OpenDB(a.cfg.DatabaseDSN)
	if err != nil {
		keys.Close()
		return nil, nil, err
	}
	closeFn := func() {
		encattr.CloseDB(db)
		keys.Close()
	}

	store, err := encattr.NewStore(db, encattr.WithStoreLogger(a.logger), encattr.WithKeyResolver(resolver))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if err := store.Register(ctx, m); err != nil {
		closeFn()
		return nil, nil, err
	}
	return m, closeFn, nil
}
