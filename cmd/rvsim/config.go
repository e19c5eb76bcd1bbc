package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/rv32sim/config"
)

type configOptions struct {
	*globalOptions

	output string
	asYAML bool
	list   bool
}

func newConfigCmd(global *globalOptions) *cobra.Command {
	opts := &configOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or save the selected system configuration.",
		Long: `Config prints the configuration selected by --variant or --config. ` +
			`With --output it saves it instead, as YAML when the file name ends ` +
			`in .yml or .yaml and as JSON otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "save the configuration to this file")
	flags.BoolVar(&opts.asYAML, "yaml", false, "print YAML instead of JSON")
	flags.BoolVar(&opts.list, "list", false, "list the built-in variants")

	return cmd
}

func (o *configOptions) run(w io.Writer) error {
	if o.list {
		for _, name := range config.Variants() {
			_, _ = fmt.Fprintln(w, name)
		}
		return nil
	}

	cfg, err := o.systemConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if o.output != "" {
		if err := cfg.SaveConfig(o.output); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "Saved %s configuration to %s\n", cfg.Variant, o.output)
		return nil
	}

	var data []byte
	if o.asYAML {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = w.Write(data)
	return err
}
